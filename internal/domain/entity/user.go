package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain"
)

// Métodos de hash de PIN soportados en paralelo (migración sin re-enrolamiento).
const (
	PINMethodLegacySHA256 = "legacy-sha256"
	PINMethodBcrypt       = "bcrypt"
)

// User representa un usuario del evento (uno por tenant) con sus sub-registros por rol.
// Solo el motor de transferencias, el flujo de efectivo y el guardián de PIN lo modifican.
type User struct {
	ID           string
	Tenant       Tenant
	AuthUID      string // identidad externa (índice secundario); distinta de ID
	Phone        string
	Name         string
	Roles        RoleSet
	DepartmentID string // vendedores: departamento al que pertenecen
	Status       string // active, inactive

	Seller     SellerAccount
	Manager    ManagerAccount
	PointSale  PointSellerStats
	MerchantID string
	Cash       CashAccount
	Customer   PointsAccount
	Security   Security

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SellerAccount inventario de puntos y efectivo cobrado por un vendedor.
type SellerAccount struct {
	AvailablePoints   decimal.Decimal
	PendingCollection decimal.Decimal // efectivo cobrado aún no entregado
	TotalSubmitted    decimal.Decimal
	TotalSold         decimal.Decimal
}

// ManagerAccount datos del encargado de vendedores.
type ManagerAccount struct {
	ManagedDepartments []string
	PointsAllocated    decimal.Decimal
}

// PointSellerStats estadísticas del vendedor de puntos.
type PointSellerStats struct {
	TodayIssued decimal.Decimal
	TodayDate   string // YYYY-MM-DD del día al que corresponde TodayIssued
	TotalIssued decimal.Decimal
	TotalCards  int
}

// CashAccount efectivo físico en manos de encargados, vendedores de puntos, cajeros y finanzas.
type CashAccount struct {
	CashOnHand     decimal.Decimal
	TotalCollected decimal.Decimal // cobrado directamente a clientes
	TotalReceived  decimal.Decimal // recibido de otros roles
	TotalSubmitted decimal.Decimal
}

// PointsAccount saldo de puntos del cliente.
type PointsAccount struct {
	Balance       decimal.Decimal
	TotalReceived decimal.Decimal
	TotalSpent    decimal.Decimal
}

// Security bloque de credencial de transacción (PIN).
type Security struct {
	PINHash           string
	PINMethod         string
	PINSalt           string
	PINFailedAttempts int
	PINLockedUntil    *time.Time
}

// HasPIN indica si el usuario tiene PIN enrolado.
func (s Security) HasPIN() bool { return s.PINHash != "" }

// LockedAt indica si el PIN está bloqueado en el instante dado.
func (s Security) LockedAt(now time.Time) bool {
	return s.PINLockedUntil != nil && s.PINLockedUntil.After(now)
}

// ManagesDepartment indica si el encargado tiene asignado el departamento.
func (u *User) ManagesDepartment(departmentID string) bool {
	if departmentID == "" {
		return false
	}
	for _, d := range u.Manager.ManagedDepartments {
		if d == departmentID {
			return true
		}
	}
	return false
}

// HeldCash devuelve el efectivo físico pendiente de entregar por el usuario.
// Para vendedores es PendingCollection; para el resto, CashOnHand.
func (u *User) HeldCash() decimal.Decimal {
	if u.Roles.Has(RoleSeller) {
		return u.Seller.PendingCollection
	}
	return u.Cash.CashOnHand
}

// ReleaseSubmittedCash descuenta el efectivo entregado y acumula el total entregado.
// Nunca deja el saldo en negativo.
func (u *User) ReleaseSubmittedCash(amount decimal.Decimal) error {
	if u.HeldCash().LessThan(amount) {
		return domain.Errorf(domain.ErrFailedPrecondition,
			"efectivo pendiente insuficiente: disponible %s, requerido %s", u.HeldCash().StringFixed(2), amount.StringFixed(2))
	}
	if u.Roles.Has(RoleSeller) {
		u.Seller.PendingCollection = u.Seller.PendingCollection.Sub(amount)
		u.Seller.TotalSubmitted = u.Seller.TotalSubmitted.Add(amount)
		return nil
	}
	u.Cash.CashOnHand = u.Cash.CashOnHand.Sub(amount)
	u.Cash.TotalSubmitted = u.Cash.TotalSubmitted.Add(amount)
	return nil
}

// ReceiveCash registra efectivo recibido de otro rol.
func (u *User) ReceiveCash(amount decimal.Decimal) {
	u.Cash.CashOnHand = u.Cash.CashOnHand.Add(amount)
	u.Cash.TotalReceived = u.Cash.TotalReceived.Add(amount)
}

// CollectCash registra efectivo cobrado directamente a un cliente.
func (u *User) CollectCash(amount decimal.Decimal) {
	u.Cash.CashOnHand = u.Cash.CashOnHand.Add(amount)
	u.Cash.TotalCollected = u.Cash.TotalCollected.Add(amount)
}

// CreditPoints acredita puntos al cliente.
func (u *User) CreditPoints(amount decimal.Decimal) {
	u.Customer.Balance = u.Customer.Balance.Add(amount)
	u.Customer.TotalReceived = u.Customer.TotalReceived.Add(amount)
}

// DebitPoints descuenta puntos al cliente; rechaza si el saldo no alcanza.
func (u *User) DebitPoints(amount decimal.Decimal) error {
	if u.Customer.Balance.LessThan(amount) {
		return domain.Errorf(domain.ErrFailedPrecondition,
			"saldo insuficiente: disponible %s, requerido %s", u.Customer.Balance.StringFixed(2), amount.StringFixed(2))
	}
	u.Customer.Balance = u.Customer.Balance.Sub(amount)
	u.Customer.TotalSpent = u.Customer.TotalSpent.Add(amount)
	return nil
}

// RestorePoints devuelve puntos por reembolso o cancelación (revierte el gasto).
func (u *User) RestorePoints(amount decimal.Decimal) {
	u.Customer.Balance = u.Customer.Balance.Add(amount)
	u.Customer.TotalSpent = u.Customer.TotalSpent.Sub(amount)
	if u.Customer.TotalSpent.IsNegative() {
		u.Customer.TotalSpent = decimal.Zero
	}
}

// RecordPointIssue acumula las estadísticas del vendedor de puntos para el día de now.
func (u *User) RecordPointIssue(amount decimal.Decimal, now time.Time) {
	day := now.Format("2006-01-02")
	if u.PointSale.TodayDate != day {
		u.PointSale.TodayDate = day
		u.PointSale.TodayIssued = decimal.Zero
	}
	u.PointSale.TodayIssued = u.PointSale.TodayIssued.Add(amount)
	u.PointSale.TotalIssued = u.PointSale.TotalIssued.Add(amount)
}

// ReceiveAllocation acredita al vendedor los puntos asignados por su encargado.
func (u *User) ReceiveAllocation(amount decimal.Decimal) {
	u.Seller.AvailablePoints = u.Seller.AvailablePoints.Add(amount)
}

// RecordAllocation registra en el encargado la asignación y el efectivo recibido 1:1 por ella.
func (u *User) RecordAllocation(amount decimal.Decimal) {
	u.Manager.PointsAllocated = u.Manager.PointsAllocated.Add(amount)
	u.ReceiveCash(amount)
}

// SellPoints descuenta del inventario del vendedor y deja el efectivo pendiente de entregar.
func (u *User) SellPoints(amount decimal.Decimal) error {
	if u.Seller.AvailablePoints.LessThan(amount) {
		return domain.Errorf(domain.ErrFailedPrecondition,
			"puntos disponibles insuficientes: disponible %s, requerido %s", u.Seller.AvailablePoints.StringFixed(2), amount.StringFixed(2))
	}
	u.Seller.AvailablePoints = u.Seller.AvailablePoints.Sub(amount)
	u.Seller.PendingCollection = u.Seller.PendingCollection.Add(amount)
	u.Seller.TotalSold = u.Seller.TotalSold.Add(amount)
	return nil
}
