package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.TenantRepository = (*TenantRepo)(nil)

// TenantRepo configuración de eventos y resumen de efectivo por evento.
type TenantRepo struct {
	q Querier
}

func NewTenantRepository(q Querier) *TenantRepo {
	return &TenantRepo{q: q}
}

func (r *TenantRepo) GetSettings(ctx context.Context, tenant entity.Tenant) (*entity.TenantSettings, error) {
	s := entity.TenantSettings{Tenant: tenant}
	err := r.q.QueryRow(ctx, `
		SELECT name, status, max_allocation_per_operation, max_merchant_assistants, updated_at
		FROM tenants WHERE org_id = $1 AND event_id = $2`,
		tenant.OrganizationID, tenant.EventID).Scan(
		&s.Name, &s.Status, &s.MaxAllocationPerOperation, &s.MaxMerchantAssistants, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant settings: %w", err)
	}
	return &s, nil
}

func (r *TenantRepo) ListActive(ctx context.Context) ([]entity.Tenant, error) {
	rows, err := r.q.Query(ctx, `SELECT org_id, event_id FROM tenants
		WHERE status IN ('', 'active') ORDER BY org_id, event_id`)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()
	var out []entity.Tenant
	for rows.Next() {
		var t entity.Tenant
		if err := rows.Scan(&t.OrganizationID, &t.EventID); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetCashSummaryForUpdate crea la fila vacía si falta y la bloquea; nunca devuelve nil.
func (r *TenantRepo) GetCashSummaryForUpdate(ctx context.Context, tenant entity.Tenant) (*entity.EventCashSummary, error) {
	if _, err := r.q.Exec(ctx, `
		INSERT INTO event_cash_summaries (org_id, event_id) VALUES ($1, $2)
		ON CONFLICT (org_id, event_id) DO NOTHING`, tenant.OrganizationID, tenant.EventID); err != nil {
		return nil, fmt.Errorf("init cash summary: %w", err)
	}
	s := entity.NewEventCashSummary(tenant)
	var byRole map[string]decimal.Decimal
	err := r.q.QueryRow(ctx, `
		SELECT total_collected, pending_count, pending_amount, confirmed_count, confirmed_amount,
			confirmed_by_role, disputed_amount, rejected_amount, updated_at
		FROM event_cash_summaries WHERE org_id = $1 AND event_id = $2 FOR UPDATE`,
		tenant.OrganizationID, tenant.EventID).Scan(
		&s.TotalCollected, &s.PendingCount, &s.PendingAmount, &s.ConfirmedCount, &s.ConfirmedAmount,
		&byRole, &s.DisputedAmount, &s.RejectedAmount, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("lock cash summary: %w", err)
	}
	if byRole != nil {
		s.ConfirmedByRole = byRole
	}
	return s, nil
}

func (r *TenantRepo) SaveCashSummary(ctx context.Context, s *entity.EventCashSummary) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO event_cash_summaries (org_id, event_id, total_collected, pending_count, pending_amount,
			confirmed_count, confirmed_amount, confirmed_by_role, disputed_amount, rejected_amount, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (org_id, event_id) DO UPDATE SET
			total_collected = EXCLUDED.total_collected,
			pending_count = EXCLUDED.pending_count,
			pending_amount = EXCLUDED.pending_amount,
			confirmed_count = EXCLUDED.confirmed_count,
			confirmed_amount = EXCLUDED.confirmed_amount,
			confirmed_by_role = EXCLUDED.confirmed_by_role,
			disputed_amount = EXCLUDED.disputed_amount,
			rejected_amount = EXCLUDED.rejected_amount,
			updated_at = EXCLUDED.updated_at`,
		s.Tenant.OrganizationID, s.Tenant.EventID, s.TotalCollected, s.PendingCount, s.PendingAmount,
		s.ConfirmedCount, s.ConfirmedAmount, s.ConfirmedByRole, s.DisputedAmount, s.RejectedAmount, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save cash summary: %w", err)
	}
	return nil
}
