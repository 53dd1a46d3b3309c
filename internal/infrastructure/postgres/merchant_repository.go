package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.MerchantRepository = (*MerchantRepo)(nil)

// MerchantRepo puestos y su recaudación.
type MerchantRepo struct {
	q Querier
}

func NewMerchantRepository(q Querier) *MerchantRepo {
	return &MerchantRepo{q: q}
}

const merchantColumns = `org_id, event_id, id, name, owner_id, assistant_ids,
	owner_collected, assistant_collected, refunded, transaction_count, created_at, updated_at`

func (r *MerchantRepo) get(ctx context.Context, query string, args ...any) (*entity.Merchant, error) {
	var m entity.Merchant
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&m.Tenant.OrganizationID, &m.Tenant.EventID, &m.ID, &m.Name, &m.OwnerID, &m.AssistantIDs,
		&m.Revenue.OwnerCollected, &m.Revenue.AssistantCollected, &m.Revenue.Refunded, &m.Revenue.TransactionCount,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MerchantRepo) GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.Merchant, error) {
	m, err := r.get(ctx, `SELECT `+merchantColumns+` FROM merchants
		WHERE org_id = $1 AND event_id = $2 AND id = $3`, tenant.OrganizationID, tenant.EventID, id)
	if err != nil {
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return m, nil
}

func (r *MerchantRepo) GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.Merchant, error) {
	m, err := r.get(ctx, `SELECT `+merchantColumns+` FROM merchants
		WHERE org_id = $1 AND event_id = $2 AND id = $3 FOR UPDATE`, tenant.OrganizationID, tenant.EventID, id)
	if err != nil {
		return nil, fmt.Errorf("lock merchant: %w", err)
	}
	return m, nil
}

func (r *MerchantRepo) UpdateRevenue(ctx context.Context, m *entity.Merchant) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE merchants SET owner_collected = $4, assistant_collected = $5, refunded = $6,
			transaction_count = $7, updated_at = now()
		WHERE org_id = $1 AND event_id = $2 AND id = $3`,
		m.Tenant.OrganizationID, m.Tenant.EventID, m.ID,
		m.Revenue.OwnerCollected, m.Revenue.AssistantCollected, m.Revenue.Refunded, m.Revenue.TransactionCount)
	if err != nil {
		return fmt.Errorf("update merchant revenue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update merchant revenue: puesto %s no existe", m.ID)
	}
	return nil
}
