package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de transacción del libro de puntos.
const (
	TxTypeAllocation      = "allocation"
	TxTypeDirectSale      = "direct_sale"
	TxTypeSellerSale      = "seller_sale"
	TxTypePayment         = "payment"
	TxTypePointCardIssue  = "point_card_issue"
	TxTypePointCardRedeem = "point_card_redeem"
)

// Estados de transacción.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusRefunded  = "refunded"
	TxStatusCancelled = "cancelled"
)

// Transaction registro inmutable de un movimiento de puntos. Solo avanza Status e History.
type Transaction struct {
	ID          string
	Tenant      Tenant
	Type        string
	FromUserID  string
	ToUserID    string
	MerchantID  string
	CardID      string
	Amount      decimal.Decimal
	Status      string
	CollectedBy string // usuario del puesto que confirmó el cobro
	CreatedBy   string
	History     []StatusChange
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StatusChange entrada del historial de estados.
type StatusChange struct {
	Status string    `json:"status"`
	By     string    `json:"by"`
	At     time.Time `json:"at"`
}

// Advance cambia el estado y lo registra en el historial.
func (t *Transaction) Advance(status, by string, now time.Time) {
	t.Status = status
	t.UpdatedAt = now
	t.History = append(t.History, StatusChange{Status: status, By: by, At: now})
}

// IsCashSource indica si el tipo deja efectivo en manos de FromUserID, que luego lo entrega.
func (t *Transaction) IsCashSource() bool {
	switch t.Type {
	case TxTypeAllocation, TxTypeDirectSale, TxTypeSellerSale, TxTypePointCardIssue:
		return true
	}
	return false
}
