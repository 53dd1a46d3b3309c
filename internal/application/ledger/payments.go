package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

// PaymentInput pago de un cliente a un puesto.
type PaymentInput struct {
	MerchantID string
	Amount     decimal.Decimal
	PIN        string
}

// Payment descuenta los puntos del cliente y deja el pago pendiente de confirmación por el puesto.
func (e *Engine) Payment(ctx context.Context, caller ports.Caller, in PaymentInput) (*entity.Transaction, error) {
	if in.MerchantID == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "puesto requerido")
	}
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	var out *entity.Transaction
	err := e.run(ctx, caller, in.PIN, entity.CapPay, func(r repository.Repos, _ *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		merchant, err := r.Merchants.GetByID(ctx, caller.Tenant, in.MerchantID)
		if err != nil {
			return nil, fmt.Errorf("leer puesto: %w", err)
		}
		if merchant == nil {
			return nil, domain.Errorf(domain.ErrNotFound, "puesto %s no encontrado", in.MerchantID)
		}
		users, err := lockUsers(ctx, r, caller, caller.UserID)
		if err != nil {
			return nil, err
		}
		customer := users[caller.UserID]
		if err := customer.DebitPoints(in.Amount); err != nil {
			return nil, err
		}
		if err := saveUsers(ctx, r, customer); err != nil {
			return nil, err
		}
		out = newTransaction(caller, entity.TxTypePayment, customer.ID, merchant.OwnerID, in.Amount, entity.TxStatusPending, now)
		out.MerchantID = merchant.ID
		if err := r.Transactions.Create(ctx, out); err != nil {
			return nil, fmt.Errorf("crear transacción: %w", err)
		}
		return newEvent(caller, entity.EventPaymentCreated, out.ID, in.Amount, now, customer), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmPayment el dueño o un asistente del puesto confirma el cobro de un pago pendiente.
func (e *Engine) ConfirmPayment(ctx context.Context, caller ports.Caller, txID, pin string) (*entity.Transaction, error) {
	var out *entity.Transaction
	err := e.run(ctx, caller, pin, entity.CapCollectPayments, func(r repository.Repos, settings *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		t, merchant, err := lockPayment(ctx, r, caller, settings, txID)
		if err != nil {
			return nil, err
		}
		if !merchant.IsStaff(caller.UserID) {
			return nil, domain.Errorf(domain.ErrPermissionDenied, "solo el personal del puesto puede confirmar el pago")
		}
		if t.Status != entity.TxStatusPending {
			return nil, domain.Errorf(domain.ErrFailedPrecondition, "el pago está %s, no pendiente", t.Status)
		}
		merchant.Collect(caller.UserID, t.Amount)
		merchant.UpdatedAt = now
		t.CollectedBy = caller.UserID
		t.Advance(entity.TxStatusCompleted, caller.UserID, now)
		if err := persistPayment(ctx, r, t, merchant); err != nil {
			return nil, err
		}
		out = t
		return newEvent(caller, entity.EventPaymentConfirmed, t.ID, t.Amount, now), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RefundPayment solo el dueño reembolsa un pago completado: el cliente recupera sus puntos y el
// ingreso se descuenta del balde de quien lo cobró.
func (e *Engine) RefundPayment(ctx context.Context, caller ports.Caller, txID, pin string) (*entity.Transaction, error) {
	var out *entity.Transaction
	err := e.run(ctx, caller, pin, entity.CapCollectPayments, func(r repository.Repos, settings *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		t, merchant, err := lockPayment(ctx, r, caller, settings, txID)
		if err != nil {
			return nil, err
		}
		if !merchant.IsOwner(caller.UserID) {
			return nil, domain.Errorf(domain.ErrPermissionDenied, "solo el dueño del puesto puede reembolsar")
		}
		if t.Status != entity.TxStatusCompleted {
			return nil, domain.Errorf(domain.ErrFailedPrecondition, "solo se reembolsan pagos completados (estado %s)", t.Status)
		}
		users, err := lockUsers(ctx, r, caller, t.FromUserID)
		if err != nil {
			return nil, err
		}
		customer := users[t.FromUserID]
		if !merchant.Reverse(t.CollectedBy, t.Amount) {
			return nil, domain.Errorf(domain.ErrFailedPrecondition, "los ingresos del puesto no cubren el reembolso")
		}
		merchant.UpdatedAt = now
		customer.RestorePoints(t.Amount)
		t.Advance(entity.TxStatusRefunded, caller.UserID, now)
		if err := saveUsers(ctx, r, customer); err != nil {
			return nil, err
		}
		if err := persistPayment(ctx, r, t, merchant); err != nil {
			return nil, err
		}
		out = t
		return newEvent(caller, entity.EventPaymentRefunded, t.ID, t.Amount, now, customer), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelPayment anula un pago pendiente; puede hacerlo el personal del puesto o el propio cliente.
func (e *Engine) CancelPayment(ctx context.Context, caller ports.Caller, txID, pin string) (*entity.Transaction, error) {
	var out *entity.Transaction
	err := e.run(ctx, caller, pin, "", func(r repository.Repos, settings *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		t, merchant, err := lockPayment(ctx, r, caller, settings, txID)
		if err != nil {
			return nil, err
		}
		isPayer := t.FromUserID == caller.UserID && caller.Roles.Can(entity.CapPay)
		isStaff := merchant.IsStaff(caller.UserID) && caller.Roles.Can(entity.CapCollectPayments)
		if !isPayer && !isStaff {
			return nil, domain.Errorf(domain.ErrPermissionDenied, "solo el cliente o el personal del puesto pueden cancelar el pago")
		}
		if t.Status != entity.TxStatusPending {
			return nil, domain.Errorf(domain.ErrFailedPrecondition, "solo se cancelan pagos pendientes (estado %s)", t.Status)
		}
		users, err := lockUsers(ctx, r, caller, t.FromUserID)
		if err != nil {
			return nil, err
		}
		customer := users[t.FromUserID]
		customer.RestorePoints(t.Amount)
		t.Advance(entity.TxStatusCancelled, caller.UserID, now)
		if err := saveUsers(ctx, r, customer); err != nil {
			return nil, err
		}
		if err := r.Transactions.UpdateStatus(ctx, t); err != nil {
			return nil, fmt.Errorf("actualizar transacción: %w", err)
		}
		out = t
		return newEvent(caller, entity.EventPaymentCancelled, t.ID, t.Amount, now, customer), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockPayment bloquea la transacción de pago y su puesto.
func lockPayment(ctx context.Context, r repository.Repos, caller ports.Caller, settings *entity.TenantSettings, txID string) (*entity.Transaction, *entity.Merchant, error) {
	if txID == "" {
		return nil, nil, domain.Errorf(domain.ErrInvalidArgument, "transacción requerida")
	}
	t, err := r.Transactions.GetForUpdate(ctx, caller.Tenant, txID)
	if err != nil {
		return nil, nil, fmt.Errorf("leer transacción: %w", err)
	}
	if t == nil {
		return nil, nil, domain.Errorf(domain.ErrNotFound, "transacción %s no encontrada", txID)
	}
	if t.Type != entity.TxTypePayment {
		return nil, nil, domain.Errorf(domain.ErrFailedPrecondition, "la transacción %s no es un pago", txID)
	}
	merchant, err := lockMerchant(ctx, r, caller, settings, t.MerchantID)
	if err != nil {
		return nil, nil, err
	}
	return t, merchant, nil
}

// lockMerchant bloquea el puesto y exige que su personal respete el tope de asistentes.
func lockMerchant(ctx context.Context, r repository.Repos, caller ports.Caller, settings *entity.TenantSettings, id string) (*entity.Merchant, error) {
	merchant, err := r.Merchants.GetForUpdate(ctx, caller.Tenant, id)
	if err != nil {
		return nil, fmt.Errorf("leer puesto: %w", err)
	}
	if merchant == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "puesto %s no encontrado", id)
	}
	if err := merchant.CheckAssistants(settings.AssistantCap()); err != nil {
		return nil, err
	}
	return merchant, nil
}

func persistPayment(ctx context.Context, r repository.Repos, t *entity.Transaction, m *entity.Merchant) error {
	if err := r.Transactions.UpdateStatus(ctx, t); err != nil {
		return fmt.Errorf("actualizar transacción: %w", err)
	}
	if err := r.Merchants.UpdateRevenue(ctx, m); err != nil {
		return fmt.Errorf("actualizar ingresos del puesto: %w", err)
	}
	return nil
}
