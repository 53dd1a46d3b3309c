package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

// TransactionRepo registro de movimientos del ledger.
type TransactionRepo struct {
	q Querier
}

func NewTransactionRepository(q Querier) *TransactionRepo {
	return &TransactionRepo{q: q}
}

const transactionColumns = `org_id, event_id, id, type, from_user_id, to_user_id, merchant_id, card_id,
	amount, status, collected_by, created_by, history, created_at, updated_at`

func scanTransaction(row pgx.Row) (*entity.Transaction, error) {
	var t entity.Transaction
	err := row.Scan(&t.Tenant.OrganizationID, &t.Tenant.EventID, &t.ID, &t.Type, &t.FromUserID, &t.ToUserID,
		&t.MerchantID, &t.CardID, &t.Amount, &t.Status, &t.CollectedBy, &t.CreatedBy, &t.History,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserta el movimiento con su historial inicial.
func (r *TransactionRepo) Create(ctx context.Context, t *entity.Transaction) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.Tenant.OrganizationID, t.Tenant.EventID, t.ID, t.Type, t.FromUserID, t.ToUserID,
		t.MerchantID, t.CardID, t.Amount, t.Status, t.CollectedBy, t.CreatedBy, t.History,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepo) GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.Transaction, error) {
	t, err := scanTransaction(r.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE org_id = $1 AND event_id = $2 AND id = $3 FOR UPDATE`,
		tenant.OrganizationID, tenant.EventID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock transaction: %w", err)
	}
	return t, nil
}

// GetByIDs lectura sin bloqueo; las fuentes se protegen con la tabla de reservas.
func (r *TransactionRepo) GetByIDs(ctx context.Context, tenant entity.Tenant, ids []string) (map[string]*entity.Transaction, error) {
	out := make(map[string]*entity.Transaction, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE org_id = $1 AND event_id = $2 AND id = ANY($3)`,
		tenant.OrganizationID, tenant.EventID, ids)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

// UpdateStatus persiste estado, colector e historial.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, t *entity.Transaction) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE transactions SET status = $4, collected_by = $5, history = $6, updated_at = $7
		WHERE org_id = $1 AND event_id = $2 AND id = $3`,
		t.Tenant.OrganizationID, t.Tenant.EventID, t.ID, t.Status, t.CollectedBy, t.History, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update transaction status: movimiento %s no existe", t.ID)
	}
	return nil
}
