package cashsubmission

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

// validateCreate validaciones sin estado; corre antes de cualquier lectura o escritura.
func validateCreate(caller ports.Caller, in CreateInput) error {
	if !in.Amount.IsPositive() || !in.Amount.Equal(in.Amount.Round(2)) {
		return domain.Errorf(domain.ErrInvalidArgument, "monto inválido: %s", in.Amount)
	}
	if in.ReceiverID == caller.UserID {
		return domain.Errorf(domain.ErrInvalidArgument, "no se puede entregar efectivo a uno mismo")
	}
	if len(in.Sources) == 0 {
		return domain.Errorf(domain.ErrInvalidArgument, "la entrega debe indicar sus registros fuente")
	}
	seen := make(map[string]struct{}, len(in.Sources))
	sum := decimal.Zero
	for _, src := range in.Sources {
		if src.Kind != entity.SourceTransaction && src.Kind != entity.SourceCashSubmission {
			return domain.Errorf(domain.ErrInvalidArgument, "tipo de fuente desconocido: %q", src.Kind)
		}
		if src.ID == "" || !src.Amount.IsPositive() {
			return domain.Errorf(domain.ErrInvalidArgument, "fuente incompleta: %s/%s", src.Kind, src.ID)
		}
		k := src.Kind + "/" + src.ID
		if _, dup := seen[k]; dup {
			return domain.Errorf(domain.ErrInvalidArgument, "fuente repetida: %s", k)
		}
		seen[k] = struct{}{}
		sum = sum.Add(src.Amount)
	}
	if sum.Sub(in.Amount).Abs().GreaterThan(entity.ReconciliationTolerance) {
		return domain.Errorf(domain.ErrInvalidArgument,
			"el monto declarado %s no concilia con la suma de fuentes %s", in.Amount.StringFixed(2), sum.StringFixed(2))
	}
	return nil
}

// verifySources comprueba que cada fuente exista, pertenezca al llamador y declare su monto real.
// La reserva contra otras entregas la hace BindSources.
func verifySources(ctx context.Context, r repository.Repos, caller ports.Caller, sources []entity.SourceRef) error {
	var txIDs, subIDs []string
	for _, src := range sources {
		if src.Kind == entity.SourceTransaction {
			txIDs = append(txIDs, src.ID)
		} else {
			subIDs = append(subIDs, src.ID)
		}
	}
	txs, err := r.Transactions.GetByIDs(ctx, caller.Tenant, txIDs)
	if err != nil {
		return fmt.Errorf("leer transacciones fuente: %w", err)
	}
	subs, err := r.Submissions.GetByIDs(ctx, caller.Tenant, subIDs)
	if err != nil {
		return fmt.Errorf("leer entregas fuente: %w", err)
	}
	for _, src := range sources {
		var amount decimal.Decimal
		switch src.Kind {
		case entity.SourceTransaction:
			t := txs[src.ID]
			if t == nil {
				return domain.Errorf(domain.ErrNotFound, "transacción fuente %s no encontrada", src.ID)
			}
			if !t.IsCashSource() || t.Status != entity.TxStatusCompleted || t.FromUserID != caller.UserID {
				return domain.Errorf(domain.ErrPermissionDenied, "la transacción %s no es efectivo cobrado por el usuario", src.ID)
			}
			amount = t.Amount
		case entity.SourceCashSubmission:
			sub := subs[src.ID]
			if sub == nil {
				return domain.Errorf(domain.ErrNotFound, "entrega fuente %s no encontrada", src.ID)
			}
			if sub.Status != entity.SubmissionConfirmed || sub.ReceivedBy == nil || *sub.ReceivedBy != caller.UserID {
				return domain.Errorf(domain.ErrPermissionDenied, "la entrega %s no fue confirmada por el usuario", src.ID)
			}
			amount = sub.Amount
		}
		if !amount.Equal(src.Amount) {
			return domain.Errorf(domain.ErrInvalidArgument,
				"la fuente %s declara %s pero registra %s", src.ID, src.Amount.StringFixed(2), amount.StringFixed(2))
		}
	}
	return nil
}
