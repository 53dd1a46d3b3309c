package entity

import (
	"sort"

	"github.com/jhoicas/feria-api/internal/domain"
)

// Role etiqueta de capacidad de un usuario. Conjunto cerrado.
type Role string

// Roles válidos.
const (
	RoleSeller         Role = "seller"
	RoleSellerManager  Role = "sellerManager"
	RoleMerchant       Role = "merchant"
	RoleCashier        Role = "cashier"
	RoleFinanceManager Role = "financeManager"
	RolePointSeller    Role = "pointSeller"
	RoleCustomer       Role = "customer"
	RoleEventManager   Role = "eventManager"
)

var knownRoles = map[Role]struct{}{
	RoleSeller: {}, RoleSellerManager: {}, RoleMerchant: {}, RoleCashier: {},
	RoleFinanceManager: {}, RolePointSeller: {}, RoleCustomer: {}, RoleEventManager: {},
}

// ParseRole valida una etiqueta de rol.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := knownRoles[r]
	return r, ok
}

// Capability acción que un rol habilita.
type Capability string

// Capacidades del motor de transferencias y del flujo de efectivo.
const (
	CapAllocatePoints  Capability = "allocate-points"
	CapIssuePoints     Capability = "issue-points"
	CapSellPoints      Capability = "sell-points"
	CapPay             Capability = "pay"
	CapCollectPayments Capability = "collect-payments"
	CapIssueCards      Capability = "issue-cards"
	CapManageCards     Capability = "manage-cards"
	CapSubmitCash      Capability = "submit-cash"
	CapCollectCash     Capability = "collect-cash"
	CapReceiveCash     Capability = "receive-cash"
	CapViewStats       Capability = "view-stats"
)

var roleCapabilities = map[Role][]Capability{
	RoleSeller:         {CapSellPoints, CapSubmitCash},
	RoleSellerManager:  {CapAllocatePoints, CapIssuePoints, CapSubmitCash, CapReceiveCash, CapViewStats},
	RoleMerchant:       {CapCollectPayments},
	RoleCashier:        {CapCollectCash, CapReceiveCash, CapSubmitCash},
	RoleFinanceManager: {CapCollectCash, CapReceiveCash, CapViewStats},
	RolePointSeller:    {CapIssuePoints, CapIssueCards, CapSubmitCash},
	RoleCustomer:       {CapPay},
	RoleEventManager:   {CapManageCards, CapViewStats},
}

// RoleSet conjunto de roles de un usuario.
type RoleSet map[Role]struct{}

// NewRoleSet construye el conjunto ignorando etiquetas desconocidas.
func NewRoleSet(tags ...string) RoleSet {
	set := make(RoleSet, len(tags))
	for _, t := range tags {
		if r, ok := ParseRole(t); ok {
			set[r] = struct{}{}
		}
	}
	return set
}

// Has indica si el conjunto contiene el rol.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Can indica si algún rol del conjunto habilita la capacidad.
func (s RoleSet) Can(c Capability) bool {
	for r := range s {
		for _, rc := range roleCapabilities[r] {
			if rc == c {
				return true
			}
		}
	}
	return false
}

// Strings devuelve las etiquetas ordenadas (persistencia y respuestas).
func (s RoleSet) Strings() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// Authorize es el único punto de verificación rol→capacidad.
func Authorize(roles RoleSet, c Capability) error {
	if roles.Can(c) {
		return nil
	}
	return domain.Errorf(domain.ErrPermissionDenied, "el rol del usuario no permite %s", c)
}
