package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de entrega de efectivo. pending es el único inicial; el resto son absorbentes.
const (
	SubmissionPending   = "pending"
	SubmissionConfirmed = "confirmed"
	SubmissionDisputed  = "disputed"
	SubmissionRejected  = "rejected"
)

// Tipos de registro fuente que respaldan una entrega.
const (
	SourceTransaction    = "transaction"
	SourceCashSubmission = "cash_submission"
)

// ReconciliationTolerance diferencia máxima entre lo declarado y la suma de fuentes.
var ReconciliationTolerance = decimal.RequireFromString("0.01")

// CashSubmission entrega física de efectivo de un rol a otro (o al pool sin reclamar).
type CashSubmission struct {
	ID            string
	Tenant        Tenant
	SubmittedBy   string
	SubmitterRole Role
	Amount        decimal.Decimal
	ReceivedBy    *string // nil = pool sin reclamar
	Status        string
	Note          string
	Reason        string // motivo de disputa o rechazo
	Sources       []SourceRef
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	UpdatedAt     time.Time
}

// SourceRef referencia a un registro fuente (venta, emisión de tarjeta o entrega confirmada).
type SourceRef struct {
	Kind   string          `json:"kind"`
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// IsPending indica si la entrega sigue abierta.
func (s *CashSubmission) IsPending() bool { return s.Status == SubmissionPending }

// IsUnclaimed indica si la entrega está en el pool.
func (s *CashSubmission) IsUnclaimed() bool { return s.ReceivedBy == nil }

// ClaimableBy indica si el colector puede reclamarla: pool o dirigida a él.
func (s *CashSubmission) ClaimableBy(userID string) bool {
	return s.ReceivedBy == nil || *s.ReceivedBy == userID
}

// Resolve fija el colector y el estado terminal.
func (s *CashSubmission) Resolve(collectorID, status, reason string, now time.Time) {
	id := collectorID
	s.ReceivedBy = &id
	s.Status = status
	s.Reason = reason
	s.ResolvedAt = &now
	s.UpdatedAt = now
}

// EventCashSummary resumen de efectivo del evento (tenant).
type EventCashSummary struct {
	Tenant          Tenant
	TotalCollected  decimal.Decimal
	PendingCount    int
	PendingAmount   decimal.Decimal
	ConfirmedCount  int
	ConfirmedAmount decimal.Decimal
	ConfirmedByRole map[string]decimal.Decimal // rol del colector → monto
	DisputedAmount  decimal.Decimal
	RejectedAmount  decimal.Decimal
	UpdatedAt       time.Time
}

// NewEventCashSummary resumen vacío.
func NewEventCashSummary(t Tenant) *EventCashSummary {
	return &EventCashSummary{Tenant: t, ConfirmedByRole: map[string]decimal.Decimal{}}
}

// AddPending registra una entrega nueva.
func (s *EventCashSummary) AddPending(amount decimal.Decimal, now time.Time) {
	s.PendingCount++
	s.PendingAmount = s.PendingAmount.Add(amount)
	s.UpdatedAt = now
}

func (s *EventCashSummary) closePending(amount decimal.Decimal, now time.Time) {
	if s.PendingCount > 0 {
		s.PendingCount--
	}
	s.PendingAmount = s.PendingAmount.Sub(amount)
	if s.PendingAmount.IsNegative() {
		s.PendingAmount = decimal.Zero
	}
	s.UpdatedAt = now
}

// Confirmed mueve la entrega de pendiente a confirmada bajo el rol del colector.
// Lo confirmado por cajeros y finanzas cuenta como efectivo recaudado por el evento.
func (s *EventCashSummary) Confirmed(amount decimal.Decimal, collectorRole Role, now time.Time) {
	s.closePending(amount, now)
	s.ConfirmedCount++
	s.ConfirmedAmount = s.ConfirmedAmount.Add(amount)
	if s.ConfirmedByRole == nil {
		s.ConfirmedByRole = map[string]decimal.Decimal{}
	}
	s.ConfirmedByRole[string(collectorRole)] = s.ConfirmedByRole[string(collectorRole)].Add(amount)
	if collectorRole == RoleCashier || collectorRole == RoleFinanceManager {
		s.TotalCollected = s.TotalCollected.Add(amount)
	}
}

// Disputed cierra la entrega como disputada.
func (s *EventCashSummary) Disputed(amount decimal.Decimal, now time.Time) {
	s.closePending(amount, now)
	s.DisputedAmount = s.DisputedAmount.Add(amount)
}

// Rejected cierra la entrega como rechazada.
func (s *EventCashSummary) Rejected(amount decimal.Decimal, now time.Time) {
	s.closePending(amount, now)
	s.RejectedAmount = s.RejectedAmount.Add(amount)
}
