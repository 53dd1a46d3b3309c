package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.PINRepository = (*PINRepo)(nil)

// PINRepo bloque de seguridad de usuarios. Cada método es una sola sentencia.
type PINRepo struct {
	q Querier
}

// NewPINRepository construye el repositorio.
func NewPINRepository(q Querier) *PINRepo {
	return &PINRepo{q: q}
}

func scanSecurity(row pgx.Row) (*entity.Security, error) {
	var s entity.Security
	if err := row.Scan(&s.PINHash, &s.PINMethod, &s.PINSalt, &s.PINFailedAttempts, &s.PINLockedUntil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetSecurity lee el bloque de seguridad.
func (r *PINRepo) GetSecurity(ctx context.Context, tenant entity.Tenant, userID string) (*entity.Security, error) {
	s, err := scanSecurity(r.q.QueryRow(ctx, `
		SELECT pin_hash, pin_method, pin_salt, pin_failed_attempts, pin_locked_until
		FROM users WHERE org_id = $1 AND event_id = $2 AND id = $3`,
		tenant.OrganizationID, tenant.EventID, userID))
	if err != nil {
		return nil, fmt.Errorf("get pin security: %w", err)
	}
	return s, nil
}

// RecordFailure incremento condicional en una sola sentencia: dos fallos concurrentes nunca cuentan como uno.
// En el intento maxAttempts se fija el bloqueo y el contador vuelve a cero.
func (r *PINRepo) RecordFailure(ctx context.Context, tenant entity.Tenant, userID string, now time.Time, maxAttempts int, lock time.Duration) (*entity.Security, error) {
	s, err := scanSecurity(r.q.QueryRow(ctx, `
		UPDATE users SET
			pin_failed_attempts = CASE WHEN pin_failed_attempts + 1 >= $4 THEN 0 ELSE pin_failed_attempts + 1 END,
			pin_locked_until    = CASE WHEN pin_failed_attempts + 1 >= $4 THEN $5::timestamptz ELSE pin_locked_until END,
			updated_at          = $6
		WHERE org_id = $1 AND event_id = $2 AND id = $3
		RETURNING pin_hash, pin_method, pin_salt, pin_failed_attempts, pin_locked_until`,
		tenant.OrganizationID, tenant.EventID, userID, maxAttempts, now.Add(lock), now))
	if err != nil {
		return nil, fmt.Errorf("record pin failure: %w", err)
	}
	if s == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", userID)
	}
	return s, nil
}

// ResetFailures limpia contador y bloqueo.
func (r *PINRepo) ResetFailures(ctx context.Context, tenant entity.Tenant, userID string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE users SET pin_failed_attempts = 0, pin_locked_until = NULL, updated_at = now()
		WHERE org_id = $1 AND event_id = $2 AND id = $3`,
		tenant.OrganizationID, tenant.EventID, userID)
	if err != nil {
		return fmt.Errorf("reset pin failures: %w", err)
	}
	return nil
}

// SetHash guarda un hash nuevo con su método.
func (r *PINRepo) SetHash(ctx context.Context, tenant entity.Tenant, userID, method, hash, salt string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE users SET pin_method = $4, pin_hash = $5, pin_salt = $6, updated_at = now()
		WHERE org_id = $1 AND event_id = $2 AND id = $3`,
		tenant.OrganizationID, tenant.EventID, userID, method, hash, salt)
	if err != nil {
		return fmt.Errorf("set pin hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", userID)
	}
	return nil
}
