package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// IssueCardRequest emisión de tarjeta. ValidDays 0 = sin vencimiento.
type IssueCardRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	ValidDays int             `json:"valid_days" validate:"min=0,max=3650"`
	PIN       string          `json:"pin" validate:"required,numeric,min=4,max=6"`
}

// RedeemCardRequest canje en un puesto.
type RedeemCardRequest struct {
	MerchantID string          `json:"merchant_id" validate:"required,max=128"`
	Amount     decimal.Decimal `json:"amount"`
	PIN        string          `json:"pin" validate:"required,numeric,min=4,max=6"`
}

type CardResponse struct {
	ID        string          `json:"id"`
	IssuedBy  string          `json:"issued_by"`
	Initial   decimal.Decimal `json:"initial"`
	Current   decimal.Decimal `json:"current"`
	Spent     decimal.Decimal `json:"spent"`
	Active    bool            `json:"active"`
	Expired   bool            `json:"expired"`
	Destroyed bool            `json:"destroyed"`
	Empty     bool            `json:"empty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewCardResponse(c *entity.PointCard) *CardResponse {
	if c == nil {
		return nil
	}
	return &CardResponse{
		ID:        c.ID,
		IssuedBy:  c.IssuedBy,
		Initial:   c.Balance.Initial,
		Current:   c.Balance.Current,
		Spent:     c.Balance.Spent,
		Active:    c.Status.Active,
		Expired:   c.Status.Expired,
		Destroyed: c.Status.Destroyed,
		Empty:     c.Status.Empty,
		ExpiresAt: c.ExpiresAt,
		CreatedAt: c.CreatedAt,
	}
}

// CardIssueResponse tarjeta emitida y su movimiento.
type CardIssueResponse struct {
	Card        *CardResponse        `json:"card"`
	Transaction *TransactionResponse `json:"transaction"`
}
