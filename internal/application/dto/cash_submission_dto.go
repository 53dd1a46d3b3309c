package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// SourceRequest referencia a un movimiento o entrega que respalda el efectivo.
type SourceRequest struct {
	Kind   string          `json:"kind" validate:"required,oneof=transaction cash_submission"`
	ID     string          `json:"id" validate:"required,max=128"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateSubmissionRequest entrega de efectivo. ReceiverID vacío la deja en el pool.
type CreateSubmissionRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	ReceiverID string          `json:"receiver_id" validate:"omitempty,max=128"`
	Sources    []SourceRequest `json:"sources" validate:"required,min=1,max=200,dive"`
	Note       string          `json:"note" validate:"max=500"`
	PIN        string          `json:"pin" validate:"required,numeric,min=4,max=6"`
}

// SourceRefs convierte las fuentes al tipo de dominio.
func (r CreateSubmissionRequest) SourceRefs() []entity.SourceRef {
	out := make([]entity.SourceRef, 0, len(r.Sources))
	for _, s := range r.Sources {
		out = append(out, entity.SourceRef{Kind: s.Kind, ID: s.ID, Amount: s.Amount})
	}
	return out
}

// ResolveSubmissionRequest motivo de disputa o rechazo, con el PIN de quien resuelve.
type ResolveSubmissionRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
	PIN    string `json:"pin" validate:"required,numeric,min=4,max=6"`
}

type SubmissionResponse struct {
	ID            string             `json:"id"`
	SubmittedBy   string             `json:"submitted_by"`
	SubmitterRole string             `json:"submitter_role"`
	Amount        decimal.Decimal    `json:"amount"`
	ReceivedBy    *string            `json:"received_by"`
	Status        string             `json:"status"`
	Note          string             `json:"note,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Sources       []entity.SourceRef `json:"sources"`
	CreatedAt     time.Time          `json:"created_at"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
}

func NewSubmissionResponse(s *entity.CashSubmission) *SubmissionResponse {
	if s == nil {
		return nil
	}
	return &SubmissionResponse{
		ID:            s.ID,
		SubmittedBy:   s.SubmittedBy,
		SubmitterRole: string(s.SubmitterRole),
		Amount:        s.Amount,
		ReceivedBy:    s.ReceivedBy,
		Status:        s.Status,
		Note:          s.Note,
		Reason:        s.Reason,
		Sources:       s.Sources,
		CreatedAt:     s.CreatedAt,
		ResolvedAt:    s.ResolvedAt,
	}
}

func NewSubmissionList(list []*entity.CashSubmission) ListResponse[*SubmissionResponse] {
	out := ListResponse[*SubmissionResponse]{Items: make([]*SubmissionResponse, 0, len(list)), Total: len(list)}
	for _, s := range list {
		out.Items = append(out.Items, NewSubmissionResponse(s))
	}
	return out
}
