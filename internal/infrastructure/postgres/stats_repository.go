package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.StatsRepository = (*StatsRepo)(nil)

// StatsRepo modelos derivados. Se escriben fuera de la transacción del ledger.
type StatsRepo struct {
	q Querier
}

func NewStatsRepository(q Querier) *StatsRepo {
	return &StatsRepo{q: q}
}

func (r *StatsRepo) UpsertDepartment(ctx context.Context, s *entity.DepartmentStats) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO department_stats (org_id, event_id, department_id, seller_count, total_available_points,
			total_pending_collection, total_submitted, total_sold, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (org_id, event_id, department_id) DO UPDATE SET
			seller_count = EXCLUDED.seller_count,
			total_available_points = EXCLUDED.total_available_points,
			total_pending_collection = EXCLUDED.total_pending_collection,
			total_submitted = EXCLUDED.total_submitted,
			total_sold = EXCLUDED.total_sold,
			updated_at = EXCLUDED.updated_at`,
		s.Tenant.OrganizationID, s.Tenant.EventID, s.DepartmentID, s.SellerCount, s.TotalAvailablePoints,
		s.TotalPendingCollection, s.TotalSubmitted, s.TotalSold, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert department stats: %w", err)
	}
	return nil
}

func (r *StatsRepo) UpsertManager(ctx context.Context, s *entity.SellerManagerStats) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO seller_manager_stats (org_id, event_id, manager_id, department_count, seller_count,
			points_allocated, cash_on_hand, cash_received, sellers_available_points,
			sellers_pending_collection, sellers_submitted, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (org_id, event_id, manager_id) DO UPDATE SET
			department_count = EXCLUDED.department_count,
			seller_count = EXCLUDED.seller_count,
			points_allocated = EXCLUDED.points_allocated,
			cash_on_hand = EXCLUDED.cash_on_hand,
			cash_received = EXCLUDED.cash_received,
			sellers_available_points = EXCLUDED.sellers_available_points,
			sellers_pending_collection = EXCLUDED.sellers_pending_collection,
			sellers_submitted = EXCLUDED.sellers_submitted,
			updated_at = EXCLUDED.updated_at`,
		s.Tenant.OrganizationID, s.Tenant.EventID, s.ManagerID, s.DepartmentCount, s.SellerCount,
		s.PointsAllocated, s.CashOnHand, s.CashReceived, s.SellersAvailablePoints,
		s.SellersPendingCollection, s.SellersSubmitted, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert manager stats: %w", err)
	}
	return nil
}

func (r *StatsRepo) GetDepartment(ctx context.Context, tenant entity.Tenant, departmentID string) (*entity.DepartmentStats, error) {
	s := entity.DepartmentStats{Tenant: tenant, DepartmentID: departmentID}
	err := r.q.QueryRow(ctx, `
		SELECT seller_count, total_available_points, total_pending_collection, total_submitted, total_sold, updated_at
		FROM department_stats WHERE org_id = $1 AND event_id = $2 AND department_id = $3`,
		tenant.OrganizationID, tenant.EventID, departmentID).Scan(
		&s.SellerCount, &s.TotalAvailablePoints, &s.TotalPendingCollection, &s.TotalSubmitted, &s.TotalSold, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get department stats: %w", err)
	}
	return &s, nil
}

func (r *StatsRepo) GetManager(ctx context.Context, tenant entity.Tenant, managerID string) (*entity.SellerManagerStats, error) {
	s := entity.SellerManagerStats{Tenant: tenant, ManagerID: managerID}
	err := r.q.QueryRow(ctx, `
		SELECT department_count, seller_count, points_allocated, cash_on_hand, cash_received,
			sellers_available_points, sellers_pending_collection, sellers_submitted, updated_at
		FROM seller_manager_stats WHERE org_id = $1 AND event_id = $2 AND manager_id = $3`,
		tenant.OrganizationID, tenant.EventID, managerID).Scan(
		&s.DepartmentCount, &s.SellerCount, &s.PointsAllocated, &s.CashOnHand, &s.CashReceived,
		&s.SellersAvailablePoints, &s.SellersPendingCollection, &s.SellersSubmitted, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get manager stats: %w", err)
	}
	return &s, nil
}

// ListDepartmentIDs departamentos de vendedores más los gestionados por encargados.
func (r *StatsRepo) ListDepartmentIDs(ctx context.Context, tenant entity.Tenant) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT d FROM (
			SELECT department_id AS d FROM users WHERE org_id = $1 AND event_id = $2 AND department_id <> ''
			UNION
			SELECT unnest(managed_departments) FROM users WHERE org_id = $1 AND event_id = $2
		) AS depts ORDER BY d`, tenant.OrganizationID, tenant.EventID)
	if err != nil {
		return nil, fmt.Errorf("list department ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan department id: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
