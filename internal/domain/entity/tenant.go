package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain"
)

// Tenant identifica el par (organización, evento) que delimita todos los datos.
type Tenant struct {
	OrganizationID string
	EventID        string
}

// IsZero indica si el tenant no fue especificado.
func (t Tenant) IsZero() bool {
	return t.OrganizationID == "" || t.EventID == ""
}

// String devuelve "org/event", útil para logs y claves de caché.
func (t Tenant) String() string {
	return t.OrganizationID + "/" + t.EventID
}

// Estados de tenant.
const (
	TenantStatusActive = "active"
	TenantStatusClosed = "closed"
)

// DefaultMaxMerchantAssistants límite de asistentes por puesto cuando el tenant no lo define.
const DefaultMaxMerchantAssistants = 5

// TenantSettings configuración del evento leída por el motor de transferencias.
// Se aprovisiona fuera de este núcleo; aquí solo se lee.
type TenantSettings struct {
	Tenant
	Name                      string
	Status                    string
	MaxAllocationPerOperation decimal.Decimal // cero = usar el valor por defecto de la configuración
	MaxMerchantAssistants     int
	UpdatedAt                 time.Time
}

// AllocationCap devuelve el tope por operación de asignación, con fallback al valor global.
func (s *TenantSettings) AllocationCap(fallback decimal.Decimal) decimal.Decimal {
	if s == nil || !s.MaxAllocationPerOperation.GreaterThan(decimal.Zero) {
		return fallback
	}
	return s.MaxAllocationPerOperation
}

// AssistantCap máximo de asistentes por puesto, con fallback a DefaultMaxMerchantAssistants.
func (s *TenantSettings) AssistantCap() int {
	if s == nil || s.MaxMerchantAssistants <= 0 {
		return DefaultMaxMerchantAssistants
	}
	return s.MaxMerchantAssistants
}

// CheckOpen rechaza movimientos en un evento cerrado. Un tenant sin configuración se considera abierto.
func (s *TenantSettings) CheckOpen() error {
	if s != nil && s.Status == TenantStatusClosed {
		return domain.Errorf(domain.ErrFailedPrecondition, "el evento %s está cerrado", s.Tenant)
	}
	return nil
}
