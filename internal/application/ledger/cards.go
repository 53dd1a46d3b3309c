package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

// IssueCardInput emisión de una tarjeta al portador.
type IssueCardInput struct {
	Amount    decimal.Decimal
	ValidDays int // 0 = sin vencimiento
	PIN       string
}

// RedeemCardInput canje de una tarjeta en un puesto.
type RedeemCardInput struct {
	CardID     string
	MerchantID string
	Amount     decimal.Decimal
	PIN        string
}

// CardIssue resultado de la emisión.
type CardIssue struct {
	Card        *entity.PointCard
	Transaction *entity.Transaction
}

// IssuePointCard el vendedor de puntos emite una tarjeta cobrando su valor en efectivo.
func (e *Engine) IssuePointCard(ctx context.Context, caller ports.Caller, in IssueCardInput) (*CardIssue, error) {
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.ValidDays < 0 || (e.cfg.MaxCardValidityDays > 0 && in.ValidDays > e.cfg.MaxCardValidityDays) {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "vigencia inválida: %d días", in.ValidDays)
	}
	var out *CardIssue
	err := e.run(ctx, caller, in.PIN, entity.CapIssueCards, func(r repository.Repos, _ *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		users, err := lockUsers(ctx, r, caller, caller.UserID)
		if err != nil {
			return nil, err
		}
		issuer := users[caller.UserID]
		card := &entity.PointCard{
			ID:        uuid.New().String(),
			Tenant:    caller.Tenant,
			IssuedBy:  issuer.ID,
			Balance:   entity.CardBalance{Initial: in.Amount, Current: in.Amount, Spent: decimal.Zero},
			Status:    entity.CardStatus{Active: true},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if in.ValidDays > 0 {
			exp := now.AddDate(0, 0, in.ValidDays)
			card.ExpiresAt = &exp
		}
		issuer.CollectCash(in.Amount)
		issuer.RecordPointIssue(in.Amount, now)
		issuer.PointSale.TotalCards++
		if err := saveUsers(ctx, r, issuer); err != nil {
			return nil, err
		}
		if err := r.Cards.Create(ctx, card); err != nil {
			return nil, fmt.Errorf("crear tarjeta: %w", err)
		}
		t := newTransaction(caller, entity.TxTypePointCardIssue, issuer.ID, "", in.Amount, entity.TxStatusCompleted, now)
		t.CardID = card.ID
		if err := r.Transactions.Create(ctx, t); err != nil {
			return nil, fmt.Errorf("crear transacción: %w", err)
		}
		out = &CardIssue{Card: card, Transaction: t}
		return newEvent(caller, entity.EventCardIssued, card.ID, in.Amount, now, issuer), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RedeemPointCard el personal de un puesto canjea saldo de una tarjeta como ingreso del puesto.
func (e *Engine) RedeemPointCard(ctx context.Context, caller ports.Caller, in RedeemCardInput) (*entity.Transaction, error) {
	if in.CardID == "" || in.MerchantID == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "tarjeta y puesto son requeridos")
	}
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	var out *entity.Transaction
	err := e.run(ctx, caller, in.PIN, entity.CapCollectPayments, func(r repository.Repos, settings *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		merchant, err := lockMerchant(ctx, r, caller, settings, in.MerchantID)
		if err != nil {
			return nil, err
		}
		if !merchant.IsStaff(caller.UserID) {
			return nil, domain.Errorf(domain.ErrPermissionDenied, "solo el personal del puesto puede canjear tarjetas")
		}
		card, err := lockCard(ctx, r, caller, in.CardID)
		if err != nil {
			return nil, err
		}
		if err := card.CheckRedeemable(in.Amount, now); err != nil {
			return nil, err
		}
		card.Redeem(in.Amount, now)
		merchant.Collect(caller.UserID, in.Amount)
		merchant.UpdatedAt = now
		if err := r.Cards.Update(ctx, card); err != nil {
			return nil, fmt.Errorf("actualizar tarjeta: %w", err)
		}
		if err := r.Merchants.UpdateRevenue(ctx, merchant); err != nil {
			return nil, fmt.Errorf("actualizar ingresos del puesto: %w", err)
		}
		out = newTransaction(caller, entity.TxTypePointCardRedeem, "", merchant.OwnerID, in.Amount, entity.TxStatusCompleted, now)
		out.CardID = card.ID
		out.MerchantID = merchant.ID
		out.CollectedBy = caller.UserID
		if err := r.Transactions.Create(ctx, out); err != nil {
			return nil, fmt.Errorf("crear transacción: %w", err)
		}
		return newEvent(caller, entity.EventCardRedeemed, out.ID, in.Amount, now), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DestroyPointCard el responsable del evento inutiliza una tarjeta. El saldo restante queda congelado.
func (e *Engine) DestroyPointCard(ctx context.Context, caller ports.Caller, cardID, pin string) (*entity.PointCard, error) {
	if cardID == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "tarjeta requerida")
	}
	var out *entity.PointCard
	err := e.run(ctx, caller, pin, entity.CapManageCards, func(r repository.Repos, _ *entity.TenantSettings, now time.Time) (*entity.LedgerEvent, error) {
		card, err := lockCard(ctx, r, caller, cardID)
		if err != nil {
			return nil, err
		}
		if card.Status.Destroyed {
			return nil, domain.Errorf(domain.ErrFailedPrecondition, "la tarjeta %s ya fue destruida", card.ID)
		}
		card.Status.Destroyed = true
		card.Status.Active = false
		card.UpdatedAt = now
		if err := r.Cards.Update(ctx, card); err != nil {
			return nil, fmt.Errorf("actualizar tarjeta: %w", err)
		}
		out = card
		return newEvent(caller, entity.EventCardDestroyed, card.ID, card.Balance.Current, now), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockCard(ctx context.Context, r repository.Repos, caller ports.Caller, cardID string) (*entity.PointCard, error) {
	card, err := r.Cards.GetForUpdate(ctx, caller.Tenant, cardID)
	if err != nil {
		return nil, fmt.Errorf("leer tarjeta: %w", err)
	}
	if card == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "tarjeta %s no encontrada", cardID)
	}
	return card, nil
}
