package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain"
)

// PointCard tarjeta al portador con saldo propio de puntos.
type PointCard struct {
	ID        string
	Tenant    Tenant
	IssuedBy  string
	Balance   CardBalance
	Status    CardStatus
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CardBalance saldo de la tarjeta.
type CardBalance struct {
	Initial decimal.Decimal
	Current decimal.Decimal
	Spent   decimal.Decimal
}

// CardStatus banderas de estado.
type CardStatus struct {
	Active    bool
	Expired   bool
	Destroyed bool
	Empty     bool
}

// CheckRedeemable valida que la tarjeta pueda canjear amount en el instante now.
func (c *PointCard) CheckRedeemable(amount decimal.Decimal, now time.Time) error {
	switch {
	case c.Status.Destroyed:
		return domain.Errorf(domain.ErrFailedPrecondition, "la tarjeta %s fue destruida", c.ID)
	case c.Status.Expired || (c.ExpiresAt != nil && !c.ExpiresAt.After(now)):
		return domain.Errorf(domain.ErrFailedPrecondition, "la tarjeta %s está vencida", c.ID)
	case !c.Status.Active:
		return domain.Errorf(domain.ErrFailedPrecondition, "la tarjeta %s no está activa", c.ID)
	case c.Balance.Current.LessThan(amount):
		return domain.Errorf(domain.ErrFailedPrecondition,
			"saldo de tarjeta insuficiente: disponible %s, requerido %s", c.Balance.Current.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

// Redeem descuenta amount. Llamar después de CheckRedeemable.
func (c *PointCard) Redeem(amount decimal.Decimal, now time.Time) {
	c.Balance.Current = c.Balance.Current.Sub(amount)
	c.Balance.Spent = c.Balance.Spent.Add(amount)
	if c.Balance.Current.IsZero() {
		c.Status.Empty = true
	}
	c.UpdatedAt = now
}
