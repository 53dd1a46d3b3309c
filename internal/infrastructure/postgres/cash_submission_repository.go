package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.CashSubmissionRepository = (*CashSubmissionRepo)(nil)

// CashSubmissionRepo entregas de efectivo y reservas de fuentes.
type CashSubmissionRepo struct {
	q Querier
}

func NewCashSubmissionRepository(q Querier) *CashSubmissionRepo {
	return &CashSubmissionRepo{q: q}
}

const submissionColumns = `org_id, event_id, id, submitted_by, submitter_role, amount, received_by,
	status, note, reason, sources, created_at, resolved_at, updated_at`

func scanSubmission(row pgx.Row) (*entity.CashSubmission, error) {
	var s entity.CashSubmission
	var role string
	err := row.Scan(&s.Tenant.OrganizationID, &s.Tenant.EventID, &s.ID, &s.SubmittedBy, &role, &s.Amount,
		&s.ReceivedBy, &s.Status, &s.Note, &s.Reason, &s.Sources, &s.CreatedAt, &s.ResolvedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.SubmitterRole = entity.Role(role)
	return &s, nil
}

func (r *CashSubmissionRepo) getOne(ctx context.Context, query string, args ...any) (*entity.CashSubmission, error) {
	s, err := scanSubmission(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *CashSubmissionRepo) list(ctx context.Context, query string, args ...any) ([]*entity.CashSubmission, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.CashSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *CashSubmissionRepo) Create(ctx context.Context, s *entity.CashSubmission) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO cash_submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.Tenant.OrganizationID, s.Tenant.EventID, s.ID, s.SubmittedBy, string(s.SubmitterRole), s.Amount,
		s.ReceivedBy, s.Status, s.Note, s.Reason, s.Sources, s.CreatedAt, s.ResolvedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert cash submission: %w", err)
	}
	return nil
}

func (r *CashSubmissionRepo) GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.CashSubmission, error) {
	s, err := r.getOne(ctx, `SELECT `+submissionColumns+` FROM cash_submissions
		WHERE org_id = $1 AND event_id = $2 AND id = $3`, tenant.OrganizationID, tenant.EventID, id)
	if err != nil {
		return nil, fmt.Errorf("get cash submission: %w", err)
	}
	return s, nil
}

// GetForUpdate bloquea la fila; el segundo confirmador espera y luego ve el estado final.
func (r *CashSubmissionRepo) GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.CashSubmission, error) {
	s, err := r.getOne(ctx, `SELECT `+submissionColumns+` FROM cash_submissions
		WHERE org_id = $1 AND event_id = $2 AND id = $3 FOR UPDATE`, tenant.OrganizationID, tenant.EventID, id)
	if err != nil {
		return nil, fmt.Errorf("lock cash submission: %w", err)
	}
	return s, nil
}

func (r *CashSubmissionRepo) GetByIDs(ctx context.Context, tenant entity.Tenant, ids []string) (map[string]*entity.CashSubmission, error) {
	out := make(map[string]*entity.CashSubmission, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := r.list(ctx, `SELECT `+submissionColumns+` FROM cash_submissions
		WHERE org_id = $1 AND event_id = $2 AND id = ANY($3)`, tenant.OrganizationID, tenant.EventID, ids)
	if err != nil {
		return nil, fmt.Errorf("get cash submissions: %w", err)
	}
	for _, s := range list {
		out[s.ID] = s
	}
	return out, nil
}

func (r *CashSubmissionRepo) Update(ctx context.Context, s *entity.CashSubmission) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE cash_submissions SET received_by = $4, status = $5, reason = $6, resolved_at = $7, updated_at = $8
		WHERE org_id = $1 AND event_id = $2 AND id = $3`,
		s.Tenant.OrganizationID, s.Tenant.EventID, s.ID, s.ReceivedBy, s.Status, s.Reason, s.ResolvedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update cash submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update cash submission: entrega %s no existe", s.ID)
	}
	return nil
}

// BindSources la clave primaria (tenant, kind, source_id) impide reclamar dos veces la misma fuente.
func (r *CashSubmissionRepo) BindSources(ctx context.Context, tenant entity.Tenant, submissionID string, sources []entity.SourceRef) error {
	for _, src := range sources {
		_, err := r.q.Exec(ctx, `
			INSERT INTO cash_submission_sources (org_id, event_id, source_kind, source_id, submission_id)
			VALUES ($1, $2, $3, $4, $5)`,
			tenant.OrganizationID, tenant.EventID, src.Kind, src.ID, submissionID)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.Errorf(domain.ErrAlreadyExists, "la fuente %s %s ya fue incluida en otra entrega", src.Kind, src.ID)
			}
			return fmt.Errorf("bind submission source: %w", err)
		}
	}
	return nil
}

func (r *CashSubmissionRepo) ReleaseSources(ctx context.Context, tenant entity.Tenant, submissionID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM cash_submission_sources
		WHERE org_id = $1 AND event_id = $2 AND submission_id = $3`,
		tenant.OrganizationID, tenant.EventID, submissionID)
	if err != nil {
		return fmt.Errorf("release submission sources: %w", err)
	}
	return nil
}

// ListPendingFor pendientes dirigidas al receptor y, si se pide, las del pool sin reclamar.
func (r *CashSubmissionRepo) ListPendingFor(ctx context.Context, tenant entity.Tenant, receiverID string, includePool bool) ([]*entity.CashSubmission, error) {
	list, err := r.list(ctx, `SELECT `+submissionColumns+` FROM cash_submissions
		WHERE org_id = $1 AND event_id = $2 AND status = 'pending'
		  AND (received_by = $3 OR ($4 AND received_by IS NULL))
		ORDER BY created_at, id`, tenant.OrganizationID, tenant.EventID, receiverID, includePool)
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	return list, nil
}

func (r *CashSubmissionRepo) ListBySubmitter(ctx context.Context, tenant entity.Tenant, submitterID string) ([]*entity.CashSubmission, error) {
	list, err := r.list(ctx, `SELECT `+submissionColumns+` FROM cash_submissions
		WHERE org_id = $1 AND event_id = $2 AND submitted_by = $3
		ORDER BY created_at, id`, tenant.OrganizationID, tenant.EventID, submitterID)
	if err != nil {
		return nil, fmt.Errorf("list submissions by submitter: %w", err)
	}
	return list, nil
}
