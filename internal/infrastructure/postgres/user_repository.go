package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implementación del puerto UserRepository sobre PostgreSQL.
type UserRepo struct {
	q Querier
}

// NewUserRepository construye el adaptador de persistencia para usuarios.
func NewUserRepository(q Querier) *UserRepo {
	return &UserRepo{q: q}
}

const userColumns = `
	org_id, event_id, id, auth_uid, phone, name, roles, department_id, status,
	seller_available_points, seller_pending_collection, seller_total_submitted, seller_total_sold,
	managed_departments, points_allocated,
	ps_today_issued, ps_today_date, ps_total_issued, ps_total_cards,
	merchant_id,
	cash_on_hand, cash_total_collected, cash_total_received, cash_total_submitted,
	points_balance, points_total_received, points_total_spent,
	pin_hash, pin_method, pin_salt, pin_failed_attempts, pin_locked_until,
	created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var u entity.User
	var roles []string
	err := row.Scan(
		&u.Tenant.OrganizationID, &u.Tenant.EventID, &u.ID, &u.AuthUID, &u.Phone, &u.Name, &roles, &u.DepartmentID, &u.Status,
		&u.Seller.AvailablePoints, &u.Seller.PendingCollection, &u.Seller.TotalSubmitted, &u.Seller.TotalSold,
		&u.Manager.ManagedDepartments, &u.Manager.PointsAllocated,
		&u.PointSale.TodayIssued, &u.PointSale.TodayDate, &u.PointSale.TotalIssued, &u.PointSale.TotalCards,
		&u.MerchantID,
		&u.Cash.CashOnHand, &u.Cash.TotalCollected, &u.Cash.TotalReceived, &u.Cash.TotalSubmitted,
		&u.Customer.Balance, &u.Customer.TotalReceived, &u.Customer.TotalSpent,
		&u.Security.PINHash, &u.Security.PINMethod, &u.Security.PINSalt, &u.Security.PINFailedAttempts, &u.Security.PINLockedUntil,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Roles = entity.NewRoleSet(roles...)
	return &u, nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...any) (*entity.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) list(ctx context.Context, query string, args ...any) ([]*entity.User, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetByID obtiene un usuario por ID dentro del tenant.
func (r *UserRepo) GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.User, error) {
	u, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE org_id = $1 AND event_id = $2 AND id = $3`,
		tenant.OrganizationID, tenant.EventID, id)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetByAuthUID busca por la identidad externa (índice único por tenant).
func (r *UserRepo) GetByAuthUID(ctx context.Context, tenant entity.Tenant, authUID string) (*entity.User, error) {
	u, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE org_id = $1 AND event_id = $2 AND auth_uid = $3`,
		tenant.OrganizationID, tenant.EventID, authUID)
	if err != nil {
		return nil, fmt.Errorf("get user by auth uid: %w", err)
	}
	return u, nil
}

// LockByIDs SELECT ... FOR UPDATE en orden ascendente de ID para que dos unidades nunca se crucen.
func (r *UserRepo) LockByIDs(ctx context.Context, tenant entity.Tenant, ids ...string) (map[string]*entity.User, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok && id != "" {
			seen[id] = struct{}{}
			uniq = append(uniq, id)
		}
	}
	sort.Strings(uniq)
	users, err := r.list(ctx, `SELECT `+userColumns+` FROM users
		WHERE org_id = $1 AND event_id = $2 AND id = ANY($3)
		ORDER BY id
		FOR UPDATE`, tenant.OrganizationID, tenant.EventID, uniq)
	if err != nil {
		return nil, fmt.Errorf("lock users: %w", err)
	}
	out := make(map[string]*entity.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// SaveBalances persiste los sub-registros de saldos. Los CHECK de la tabla rechazan negativos.
func (r *UserRepo) SaveBalances(ctx context.Context, u *entity.User) error {
	query := `
		UPDATE users SET
			seller_available_points = $4, seller_pending_collection = $5, seller_total_submitted = $6, seller_total_sold = $7,
			points_allocated = $8,
			ps_today_issued = $9, ps_today_date = $10, ps_total_issued = $11, ps_total_cards = $12,
			cash_on_hand = $13, cash_total_collected = $14, cash_total_received = $15, cash_total_submitted = $16,
			points_balance = $17, points_total_received = $18, points_total_spent = $19,
			updated_at = $20
		WHERE org_id = $1 AND event_id = $2 AND id = $3`
	tag, err := r.q.Exec(ctx, query,
		u.Tenant.OrganizationID, u.Tenant.EventID, u.ID,
		u.Seller.AvailablePoints, u.Seller.PendingCollection, u.Seller.TotalSubmitted, u.Seller.TotalSold,
		u.Manager.PointsAllocated,
		u.PointSale.TodayIssued, u.PointSale.TodayDate, u.PointSale.TotalIssued, u.PointSale.TotalCards,
		u.Cash.CashOnHand, u.Cash.TotalCollected, u.Cash.TotalReceived, u.Cash.TotalSubmitted,
		u.Customer.Balance, u.Customer.TotalReceived, u.Customer.TotalSpent,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update user balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user balances: usuario %s no existe", u.ID)
	}
	return nil
}

// ListByDepartments vendedores de los departamentos indicados.
func (r *UserRepo) ListByDepartments(ctx context.Context, tenant entity.Tenant, departmentIDs []string) ([]*entity.User, error) {
	users, err := r.list(ctx, `SELECT `+userColumns+` FROM users
		WHERE org_id = $1 AND event_id = $2 AND department_id = ANY($3) AND 'seller' = ANY(roles)
		ORDER BY id`, tenant.OrganizationID, tenant.EventID, departmentIDs)
	if err != nil {
		return nil, fmt.Errorf("list users by departments: %w", err)
	}
	return users, nil
}

// ListByRole usuarios con el rol indicado.
func (r *UserRepo) ListByRole(ctx context.Context, tenant entity.Tenant, role entity.Role) ([]*entity.User, error) {
	users, err := r.list(ctx, `SELECT `+userColumns+` FROM users
		WHERE org_id = $1 AND event_id = $2 AND $3 = ANY(roles)
		ORDER BY id`, tenant.OrganizationID, tenant.EventID, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// ListManagersOf encargados que gestionan alguno de los departamentos (intersección de arrays).
func (r *UserRepo) ListManagersOf(ctx context.Context, tenant entity.Tenant, departmentIDs []string) ([]*entity.User, error) {
	users, err := r.list(ctx, `SELECT `+userColumns+` FROM users
		WHERE org_id = $1 AND event_id = $2 AND 'sellerManager' = ANY(roles) AND managed_departments && $3
		ORDER BY id`, tenant.OrganizationID, tenant.EventID, departmentIDs)
	if err != nil {
		return nil, fmt.Errorf("list managers: %w", err)
	}
	return users, nil
}

// ResetDailyPointStats reinicia "emitido hoy" de los vendedores de puntos cuyo día quedó atrás.
func (r *UserRepo) ResetDailyPointStats(ctx context.Context, tenant entity.Tenant, day string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE users SET ps_today_issued = 0, ps_today_date = $3, updated_at = now()
		WHERE org_id = $1 AND event_id = $2 AND 'pointSeller' = ANY(roles) AND ps_today_date <> $3`,
		tenant.OrganizationID, tenant.EventID, day)
	if err != nil {
		return fmt.Errorf("reset daily point stats: %w", err)
	}
	return nil
}
