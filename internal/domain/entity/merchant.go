package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain"
)

// Merchant puesto con un dueño y hasta N asistentes.
type Merchant struct {
	ID           string
	Tenant       Tenant
	Name         string
	OwnerID      string
	AssistantIDs []string
	Revenue      MerchantRevenue
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MerchantRevenue ingresos del puesto separados por quién cobró.
type MerchantRevenue struct {
	OwnerCollected     decimal.Decimal
	AssistantCollected decimal.Decimal
	Refunded           decimal.Decimal
	TransactionCount   int
}

// Total ingresos netos del puesto.
func (r MerchantRevenue) Total() decimal.Decimal {
	return r.OwnerCollected.Add(r.AssistantCollected)
}

// IsOwner indica si el usuario es el dueño.
func (m *Merchant) IsOwner(userID string) bool { return m.OwnerID == userID }

// CheckAssistants rechaza un puesto cuyo registro supera el tope de asistentes del evento.
func (m *Merchant) CheckAssistants(max int) error {
	if len(m.AssistantIDs) > max {
		return domain.Errorf(domain.ErrFailedPrecondition,
			"el puesto %s tiene %d asistentes y el evento admite %d", m.ID, len(m.AssistantIDs), max)
	}
	return nil
}

// IsStaff indica si el usuario es dueño o asistente.
func (m *Merchant) IsStaff(userID string) bool {
	if m.IsOwner(userID) {
		return true
	}
	for _, a := range m.AssistantIDs {
		if a == userID {
			return true
		}
	}
	return false
}

// Collect suma ingresos en el balde del rol que cobró.
func (m *Merchant) Collect(collectorID string, amount decimal.Decimal) {
	if m.IsOwner(collectorID) {
		m.Revenue.OwnerCollected = m.Revenue.OwnerCollected.Add(amount)
	} else {
		m.Revenue.AssistantCollected = m.Revenue.AssistantCollected.Add(amount)
	}
	m.Revenue.TransactionCount++
}

// Reverse descuenta un cobro previo del balde que lo recibió.
// Devuelve false si el balde no alcanza (no se permite saldo negativo).
func (m *Merchant) Reverse(collectorID string, amount decimal.Decimal) bool {
	if m.IsOwner(collectorID) {
		if m.Revenue.OwnerCollected.LessThan(amount) {
			return false
		}
		m.Revenue.OwnerCollected = m.Revenue.OwnerCollected.Sub(amount)
	} else {
		if m.Revenue.AssistantCollected.LessThan(amount) {
			return false
		}
		m.Revenue.AssistantCollected = m.Revenue.AssistantCollected.Sub(amount)
	}
	m.Revenue.Refunded = m.Revenue.Refunded.Add(amount)
	return true
}
