package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.PointCardRepository = (*PointCardRepo)(nil)

type PointCardRepo struct {
	q Querier
}

func NewPointCardRepository(q Querier) *PointCardRepo {
	return &PointCardRepo{q: q}
}

const cardColumns = `org_id, event_id, id, issued_by, initial_balance, current_balance, spent,
	active, expired, destroyed, empty, expires_at, created_at, updated_at`

func (r *PointCardRepo) Create(ctx context.Context, c *entity.PointCard) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO point_cards (`+cardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.Tenant.OrganizationID, c.Tenant.EventID, c.ID, c.IssuedBy,
		c.Balance.Initial, c.Balance.Current, c.Balance.Spent,
		c.Status.Active, c.Status.Expired, c.Status.Destroyed, c.Status.Empty,
		c.ExpiresAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert point card: %w", err)
	}
	return nil
}

func (r *PointCardRepo) GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.PointCard, error) {
	var c entity.PointCard
	err := r.q.QueryRow(ctx, `SELECT `+cardColumns+` FROM point_cards
		WHERE org_id = $1 AND event_id = $2 AND id = $3 FOR UPDATE`,
		tenant.OrganizationID, tenant.EventID, id).Scan(
		&c.Tenant.OrganizationID, &c.Tenant.EventID, &c.ID, &c.IssuedBy,
		&c.Balance.Initial, &c.Balance.Current, &c.Balance.Spent,
		&c.Status.Active, &c.Status.Expired, &c.Status.Destroyed, &c.Status.Empty,
		&c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock point card: %w", err)
	}
	return &c, nil
}

func (r *PointCardRepo) Update(ctx context.Context, c *entity.PointCard) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE point_cards SET current_balance = $4, spent = $5,
			active = $6, expired = $7, destroyed = $8, empty = $9, updated_at = $10
		WHERE org_id = $1 AND event_id = $2 AND id = $3`,
		c.Tenant.OrganizationID, c.Tenant.EventID, c.ID, c.Balance.Current, c.Balance.Spent,
		c.Status.Active, c.Status.Expired, c.Status.Destroyed, c.Status.Empty, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update point card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update point card: tarjeta %s no existe", c.ID)
	}
	return nil
}
