// Package ledger implementa el motor de transferencias: cada operación valida la entrada,
// verifica el PIN y ejecuta una única unidad atómica sobre el estado más reciente.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

// Config límites globales del motor.
type Config struct {
	// DefaultMaxAllocation tope por asignación cuando el tenant no define uno.
	DefaultMaxAllocation decimal.Decimal
	// MaxCardValidityDays vigencia máxima de una tarjeta; 0 = sin límite.
	MaxCardValidityDays int
}

// DefaultConfig tope de 500 puntos por asignación y tarjetas de hasta un año.
func DefaultConfig() Config {
	return Config{DefaultMaxAllocation: decimal.NewFromInt(500), MaxCardValidityDays: 365}
}

// Engine motor de transferencias.
type Engine struct {
	txRunner repository.TxRunner
	pins     ports.PINVerifier
	hooks    ports.CommitHook
	cfg      Config
	now      func() time.Time
}

// NewEngine construye el motor. hooks puede ser nil.
func NewEngine(txRunner repository.TxRunner, pins ports.PINVerifier, hooks ports.CommitHook, cfg Config) *Engine {
	if !cfg.DefaultMaxAllocation.IsPositive() {
		cfg.DefaultMaxAllocation = DefaultConfig().DefaultMaxAllocation
	}
	if hooks == nil {
		hooks = ports.Hooks(nil)
	}
	return &Engine{txRunner: txRunner, pins: pins, hooks: hooks, cfg: cfg, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// TransferInput entrada común de asignaciones y ventas.
type TransferInput struct {
	RecipientID string
	Amount      decimal.Decimal
	PIN         string
}

// Allocate el encargado asigna puntos a un vendedor de un departamento que gestiona.
// El encargado recibe 1:1 el efectivo correspondiente.
func (e *Engine) Allocate(ctx context.Context, caller ports.Caller, in TransferInput) (*entity.Transaction, error) {
	if err := validateTransfer(caller, in); err != nil {
		return nil, err
	}
	var out *entity.Transaction
	err := e.run(ctx, caller, in.PIN, entity.CapAllocatePoints, func(r repository.Repos, settings *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		limit := settings.AllocationCap(e.cfg.DefaultMaxAllocation)
		if in.Amount.GreaterThan(limit) {
			return nil, domain.Errorf(domain.ErrInvalidArgument,
				"el monto %s supera el máximo por asignación (%s)", in.Amount.StringFixed(2), limit.StringFixed(2))
		}
		users, err := lockUsers(ctx, r, caller, caller.UserID, in.RecipientID)
		if err != nil {
			return nil, err
		}
		manager, seller := users[caller.UserID], users[in.RecipientID]
		if !seller.Roles.Has(entity.RoleSeller) {
			return nil, domain.Errorf(domain.ErrInvalidArgument, "el destinatario %s no es vendedor", seller.ID)
		}
		if !manager.ManagesDepartment(seller.DepartmentID) {
			return nil, domain.Errorf(domain.ErrPermissionDenied,
				"el vendedor %s no pertenece a un departamento gestionado por el encargado", seller.ID)
		}

		seller.ReceiveAllocation(in.Amount)
		manager.RecordAllocation(in.Amount)
		if err := saveUsers(ctx, r, manager, seller); err != nil {
			return nil, err
		}
		out = newTransaction(caller, entity.TxTypeAllocation, manager.ID, seller.ID, in.Amount, entity.TxStatusCompleted, now)
		if err := r.Transactions.Create(ctx, out); err != nil {
			return nil, fmt.Errorf("crear transacción: %w", err)
		}
		ev := newEvent(caller, entity.EventAllocation, out.ID, in.Amount, now, manager, seller)
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DirectSale un emisor vende puntos directamente a un cliente y cobra el efectivo.
// El emisor no tiene saldo de puntos que descontar.
func (e *Engine) DirectSale(ctx context.Context, caller ports.Caller, in TransferInput) (*entity.Transaction, error) {
	if err := validateTransfer(caller, in); err != nil {
		return nil, err
	}
	var out *entity.Transaction
	err := e.run(ctx, caller, in.PIN, entity.CapIssuePoints, func(r repository.Repos, _ *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		users, err := lockUsers(ctx, r, caller, caller.UserID, in.RecipientID)
		if err != nil {
			return nil, err
		}
		issuer, customer := users[caller.UserID], users[in.RecipientID]
		if !customer.Roles.Has(entity.RoleCustomer) {
			return nil, domain.Errorf(domain.ErrInvalidArgument, "el destinatario %s no es cliente", customer.ID)
		}

		customer.CreditPoints(in.Amount)
		issuer.CollectCash(in.Amount)
		if issuer.Roles.Has(entity.RolePointSeller) {
			issuer.RecordPointIssue(in.Amount, now)
		}
		if err := saveUsers(ctx, r, issuer, customer); err != nil {
			return nil, err
		}
		out = newTransaction(caller, entity.TxTypeDirectSale, issuer.ID, customer.ID, in.Amount, entity.TxStatusCompleted, now)
		if err := r.Transactions.Create(ctx, out); err != nil {
			return nil, fmt.Errorf("crear transacción: %w", err)
		}
		return newEvent(caller, entity.EventDirectSale, out.ID, in.Amount, now, issuer, customer), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SellerSale un vendedor vende a un cliente puntos de su inventario asignado.
func (e *Engine) SellerSale(ctx context.Context, caller ports.Caller, in TransferInput) (*entity.Transaction, error) {
	if err := validateTransfer(caller, in); err != nil {
		return nil, err
	}
	var out *entity.Transaction
	err := e.run(ctx, caller, in.PIN, entity.CapSellPoints, func(r repository.Repos, _ *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		users, err := lockUsers(ctx, r, caller, caller.UserID, in.RecipientID)
		if err != nil {
			return nil, err
		}
		seller, customer := users[caller.UserID], users[in.RecipientID]
		if !customer.Roles.Has(entity.RoleCustomer) {
			return nil, domain.Errorf(domain.ErrInvalidArgument, "el destinatario %s no es cliente", customer.ID)
		}
		if err := seller.SellPoints(in.Amount); err != nil {
			return nil, err
		}
		customer.CreditPoints(in.Amount)
		if err := saveUsers(ctx, r, seller, customer); err != nil {
			return nil, err
		}
		out = newTransaction(caller, entity.TxTypeSellerSale, seller.ID, customer.ID, in.Amount, entity.TxStatusCompleted, now)
		if err := r.Transactions.Create(ctx, out); err != nil {
			return nil, fmt.Errorf("crear transacción: %w", err)
		}
		return newEvent(caller, entity.EventSellerSale, out.ID, in.Amount, now, seller, customer), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// opFunc cuerpo de una unidad atómica. Puede re-ejecutarse completo si el almacén detecta un conflicto.
type opFunc func(r repository.Repos, settings *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error)

// run autoriza, verifica el PIN, ejecuta fn en una unidad atómica y dispara los hooks post-commit.
// need vacío delega la autorización a fn.
func (e *Engine) run(ctx context.Context, caller ports.Caller, pin string, need entity.Capability, fn opFunc) error {
	if need != "" {
		if err := entity.Authorize(caller.Roles, need); err != nil {
			return err
		}
	}
	if err := e.pins.Verify(ctx, caller, pin); err != nil {
		return err
	}
	var ev *entity.LedgerEvent
	err := e.txRunner.RunInTx(ctx, func(r repository.Repos) error {
		settings, err := r.Tenants.GetSettings(ctx, caller.Tenant)
		if err != nil {
			return fmt.Errorf("leer configuración del evento: %w", err)
		}
		if err := settings.CheckOpen(); err != nil {
			return err
		}
		ev, err = fn(r, settings, e.now())
		return err
	})
	if err != nil {
		return err
	}
	if ev != nil {
		e.hooks.AfterCommit(ctx, *ev)
	}
	return nil
}

func validateTransfer(caller ports.Caller, in TransferInput) error {
	if in.RecipientID == "" {
		return domain.Errorf(domain.ErrInvalidArgument, "destinatario requerido")
	}
	if in.RecipientID == caller.UserID {
		return domain.Errorf(domain.ErrInvalidArgument, "no se puede transferir a uno mismo")
	}
	return validateAmount(in.Amount)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Errorf(domain.ErrInvalidArgument, "el monto debe ser mayor que cero")
	}
	if !amount.Equal(amount.Round(2)) {
		return domain.Errorf(domain.ErrInvalidArgument, "el monto admite como máximo dos decimales")
	}
	return nil
}

// lockUsers bloquea los usuarios indicados y falla con not-found si alguno no existe en el tenant.
func lockUsers(ctx context.Context, r repository.Repos, caller ports.Caller, ids ...string) (map[string]*entity.User, error) {
	users, err := r.Users.LockByIDs(ctx, caller.Tenant, ids...)
	if err != nil {
		return nil, fmt.Errorf("bloquear usuarios: %w", err)
	}
	for _, id := range ids {
		if users[id] == nil {
			return nil, domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", id)
		}
	}
	return users, nil
}

func saveUsers(ctx context.Context, r repository.Repos, users ...*entity.User) error {
	for _, u := range users {
		if err := r.Users.SaveBalances(ctx, u); err != nil {
			return fmt.Errorf("guardar saldos de %s: %w", u.ID, err)
		}
	}
	return nil
}

func newTransaction(caller ports.Caller, typ, from, to string, amount decimal.Decimal, status string, now time.Time) *entity.Transaction {
	t := &entity.Transaction{
		ID:         uuid.New().String(),
		Tenant:     caller.Tenant,
		Type:       typ,
		FromUserID: from,
		ToUserID:   to,
		Amount:     amount,
		CreatedBy:  caller.UserID,
		CreatedAt:  now,
	}
	t.Advance(status, caller.UserID, now)
	return t
}

// newEvent arma el evento post-commit con los departamentos y encargados afectados por los usuarios tocados.
func newEvent(caller ports.Caller, typ, refID string, amount decimal.Decimal, now time.Time, touched ...*entity.User) *entity.LedgerEvent {
	ev := &entity.LedgerEvent{
		Tenant:     caller.Tenant,
		OrgID:      caller.Tenant.OrganizationID,
		EventID:    caller.Tenant.EventID,
		Type:       typ,
		RefID:      refID,
		ActorID:    caller.UserID,
		Amount:     amount,
		OccurredAt: now,
	}
	depts := map[string]struct{}{}
	managers := map[string]struct{}{}
	for _, u := range touched {
		if u == nil {
			continue
		}
		ev.UserIDs = append(ev.UserIDs, u.ID)
		if u.Roles.Has(entity.RoleSeller) && u.DepartmentID != "" {
			depts[u.DepartmentID] = struct{}{}
		}
		if u.Roles.Has(entity.RoleSellerManager) {
			managers[u.ID] = struct{}{}
		}
	}
	ev.DepartmentIDs = sortedKeys(depts)
	ev.ManagerIDs = sortedKeys(managers)
	return ev
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
