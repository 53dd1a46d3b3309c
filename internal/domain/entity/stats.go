package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepartmentStats modelo derivado por departamento; se recalcula completo, nunca se parchea.
type DepartmentStats struct {
	Tenant                 Tenant
	DepartmentID           string
	SellerCount            int
	TotalAvailablePoints   decimal.Decimal
	TotalPendingCollection decimal.Decimal
	TotalSubmitted         decimal.Decimal
	TotalSold              decimal.Decimal
	UpdatedAt              time.Time
}

// SellerManagerStats modelo derivado por encargado.
type SellerManagerStats struct {
	Tenant                   Tenant
	ManagerID                string
	DepartmentCount          int
	SellerCount              int
	PointsAllocated          decimal.Decimal
	CashOnHand               decimal.Decimal
	CashReceived             decimal.Decimal
	SellersAvailablePoints   decimal.Decimal
	SellersPendingCollection decimal.Decimal
	SellersSubmitted         decimal.Decimal
	UpdatedAt                time.Time
}

// LedgerEvent describe un cambio confirmado del libro; lo consumen los hooks post-commit.
type LedgerEvent struct {
	Tenant        Tenant          `json:"-"`
	OrgID         string          `json:"organization_id"`
	EventID       string          `json:"event_id"`
	Type          string          `json:"type"`
	RefID         string          `json:"ref_id"`
	ActorID       string          `json:"actor_id"`
	Amount        decimal.Decimal `json:"amount"`
	UserIDs       []string        `json:"user_ids,omitempty"`
	DepartmentIDs []string        `json:"department_ids,omitempty"`
	ManagerIDs    []string        `json:"manager_ids,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Tipos de evento del libro (clave de enrutamiento en el broker).
const (
	EventAllocation          = "ledger.allocation.completed"
	EventDirectSale          = "ledger.direct_sale.completed"
	EventSellerSale          = "ledger.seller_sale.completed"
	EventPaymentCreated      = "ledger.payment.pending"
	EventPaymentConfirmed    = "ledger.payment.completed"
	EventPaymentRefunded     = "ledger.payment.refunded"
	EventPaymentCancelled    = "ledger.payment.cancelled"
	EventCardIssued          = "ledger.card.issued"
	EventCardRedeemed        = "ledger.card.redeemed"
	EventCardDestroyed       = "ledger.card.destroyed"
	EventSubmissionCreated   = "cash.submission.pending"
	EventSubmissionConfirmed = "cash.submission.confirmed"
	EventSubmissionDisputed  = "cash.submission.disputed"
	EventSubmissionRejected  = "cash.submission.rejected"
)
