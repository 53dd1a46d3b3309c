// Package cashsubmission implementa la máquina de estados de entregas de efectivo:
// pending → {confirmed, disputed, rejected}. Los estados de salida son terminales.
package cashsubmission

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

// Service casos de uso de entregas de efectivo.
type Service struct {
	txRunner    repository.TxRunner
	submissions repository.CashSubmissionRepository
	pins        ports.PINVerifier
	hooks       ports.CommitHook
	now         func() time.Time
}

// NewService construye el servicio. submissions se usa solo para lecturas fuera de transacción.
func NewService(txRunner repository.TxRunner, submissions repository.CashSubmissionRepository, pins ports.PINVerifier, hooks ports.CommitHook) *Service {
	if hooks == nil {
		hooks = ports.Hooks(nil)
	}
	return &Service{txRunner: txRunner, submissions: submissions, pins: pins, hooks: hooks, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput datos de una entrega nueva. ReceiverID vacío la deja en el pool sin reclamar.
type CreateInput struct {
	Amount     decimal.Decimal
	ReceiverID string
	Sources    []entity.SourceRef
	Note       string
	PIN        string
}

// Orden de preferencia para el rol con que se registra quien entrega o recibe.
var (
	submitterRoles = []entity.Role{entity.RoleSeller, entity.RolePointSeller, entity.RoleSellerManager, entity.RoleCashier}
	collectorRoles = []entity.Role{entity.RoleFinanceManager, entity.RoleCashier, entity.RoleSellerManager}
)

// Create registra una entrega pendiente. La conciliación contra las fuentes se valida antes de escribir.
func (s *Service) Create(ctx context.Context, caller ports.Caller, in CreateInput) (*entity.CashSubmission, error) {
	if err := entity.Authorize(caller.Roles, entity.CapSubmitCash); err != nil {
		return nil, err
	}
	if err := validateCreate(caller, in); err != nil {
		return nil, err
	}
	if err := s.pins.Verify(ctx, caller, in.PIN); err != nil {
		return nil, err
	}

	var out *entity.CashSubmission
	var ev *entity.LedgerEvent
	err := s.txRunner.RunInTx(ctx, func(r repository.Repos) error {
		now := s.now()
		if err := checkOpen(ctx, r, caller.Tenant); err != nil {
			return err
		}
		ids := []string{caller.UserID}
		if in.ReceiverID != "" {
			ids = append(ids, in.ReceiverID)
		}
		users, err := r.Users.LockByIDs(ctx, caller.Tenant, ids...)
		if err != nil {
			return fmt.Errorf("bloquear usuarios: %w", err)
		}
		submitter := users[caller.UserID]
		if submitter == nil {
			return domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", caller.UserID)
		}
		role := firstRole(submitter.Roles, submitterRoles)

		var receiver *entity.User
		if in.ReceiverID != "" {
			receiver = users[in.ReceiverID]
			if receiver == nil {
				return domain.Errorf(domain.ErrNotFound, "receptor %s no encontrado", in.ReceiverID)
			}
			if !canReceiveFrom(receiver, submitter, role) {
				return domain.Errorf(domain.ErrInvalidArgument, "el receptor %s no puede recibir entregas de %s", receiver.ID, role)
			}
		}

		if err := verifySources(ctx, r, caller, in.Sources); err != nil {
			return err
		}
		if submitter.HeldCash().LessThan(in.Amount) {
			return domain.Errorf(domain.ErrFailedPrecondition,
				"efectivo sin entregar insuficiente: disponible %s, declarado %s",
				submitter.HeldCash().StringFixed(2), in.Amount.StringFixed(2))
		}

		sub := &entity.CashSubmission{
			ID:            uuid.New().String(),
			Tenant:        caller.Tenant,
			SubmittedBy:   submitter.ID,
			SubmitterRole: role,
			Amount:        in.Amount,
			Status:        entity.SubmissionPending,
			Note:          in.Note,
			Sources:       in.Sources,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if receiver != nil {
			id := receiver.ID
			sub.ReceivedBy = &id
		}
		if err := r.Submissions.Create(ctx, sub); err != nil {
			return fmt.Errorf("crear entrega: %w", err)
		}
		if err := r.Submissions.BindSources(ctx, caller.Tenant, sub.ID, sub.Sources); err != nil {
			return err
		}
		summary, err := r.Tenants.GetCashSummaryForUpdate(ctx, caller.Tenant)
		if err != nil {
			return fmt.Errorf("leer resumen de efectivo: %w", err)
		}
		summary.AddPending(in.Amount, now)
		if err := r.Tenants.SaveCashSummary(ctx, summary); err != nil {
			return fmt.Errorf("guardar resumen de efectivo: %w", err)
		}
		out = sub
		ev = submissionEvent(caller, entity.EventSubmissionCreated, sub, now, submitter, receiver)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.hooks.AfterCommit(ctx, *ev)
	return out, nil
}

// Confirm el colector reclama la entrega y recibe el efectivo. Solo una confirmación puede ganar:
// la segunda encuentra la entrega fuera de pending y falla sin mover saldos.
func (s *Service) Confirm(ctx context.Context, caller ports.Caller, submissionID, pin string) (*entity.CashSubmission, error) {
	if submissionID == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "entrega requerida")
	}
	if err := s.pins.Verify(ctx, caller, pin); err != nil {
		return nil, err
	}
	var out *entity.CashSubmission
	var ev *entity.LedgerEvent
	err := s.txRunner.RunInTx(ctx, func(r repository.Repos) error {
		now := s.now()
		sub, err := lockClaimable(ctx, r, caller, submissionID)
		if err != nil {
			return err
		}
		users, err := r.Users.LockByIDs(ctx, caller.Tenant, sub.SubmittedBy, caller.UserID)
		if err != nil {
			return fmt.Errorf("bloquear usuarios: %w", err)
		}
		submitter, collector := users[sub.SubmittedBy], users[caller.UserID]
		if submitter == nil || collector == nil {
			return domain.Errorf(domain.ErrNotFound, "participantes de la entrega %s no encontrados", sub.ID)
		}
		if err := submitter.ReleaseSubmittedCash(sub.Amount); err != nil {
			return err
		}
		collector.ReceiveCash(sub.Amount)
		sub.Resolve(collector.ID, entity.SubmissionConfirmed, "", now)

		for _, u := range []*entity.User{submitter, collector} {
			if err := r.Users.SaveBalances(ctx, u); err != nil {
				return fmt.Errorf("guardar saldos de %s: %w", u.ID, err)
			}
		}
		if err := r.Submissions.Update(ctx, sub); err != nil {
			return fmt.Errorf("actualizar entrega: %w", err)
		}
		summary, err := r.Tenants.GetCashSummaryForUpdate(ctx, caller.Tenant)
		if err != nil {
			return fmt.Errorf("leer resumen de efectivo: %w", err)
		}
		summary.Confirmed(sub.Amount, firstRole(collector.Roles, collectorRoles), now)
		if err := r.Tenants.SaveCashSummary(ctx, summary); err != nil {
			return fmt.Errorf("guardar resumen de efectivo: %w", err)
		}
		out = sub
		ev = submissionEvent(caller, entity.EventSubmissionConfirmed, sub, now, submitter, collector)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.hooks.AfterCommit(ctx, *ev)
	return out, nil
}

// Dispute cierra la entrega como disputada; las fuentes siguen reservadas.
func (s *Service) Dispute(ctx context.Context, caller ports.Caller, submissionID, reason, pin string) (*entity.CashSubmission, error) {
	return s.close(ctx, caller, submissionID, reason, pin, entity.SubmissionDisputed)
}

// Reject cierra la entrega como rechazada y libera sus fuentes para otra entrega.
func (s *Service) Reject(ctx context.Context, caller ports.Caller, submissionID, reason, pin string) (*entity.CashSubmission, error) {
	return s.close(ctx, caller, submissionID, reason, pin, entity.SubmissionRejected)
}

// close exige PIN igual que Confirm: las tres transiciones son terminales.
func (s *Service) close(ctx context.Context, caller ports.Caller, submissionID, reason, pin, status string) (*entity.CashSubmission, error) {
	if submissionID == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "entrega requerida")
	}
	if reason == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "el motivo es obligatorio")
	}
	if err := s.pins.Verify(ctx, caller, pin); err != nil {
		return nil, err
	}
	var out *entity.CashSubmission
	var ev *entity.LedgerEvent
	err := s.txRunner.RunInTx(ctx, func(r repository.Repos) error {
		now := s.now()
		sub, err := lockClaimable(ctx, r, caller, submissionID)
		if err != nil {
			return err
		}
		sub.Resolve(caller.UserID, status, reason, now)
		if err := r.Submissions.Update(ctx, sub); err != nil {
			return fmt.Errorf("actualizar entrega: %w", err)
		}
		summary, err := r.Tenants.GetCashSummaryForUpdate(ctx, caller.Tenant)
		if err != nil {
			return fmt.Errorf("leer resumen de efectivo: %w", err)
		}
		typ := entity.EventSubmissionDisputed
		if status == entity.SubmissionRejected {
			typ = entity.EventSubmissionRejected
			if err := r.Submissions.ReleaseSources(ctx, caller.Tenant, sub.ID); err != nil {
				return fmt.Errorf("liberar fuentes: %w", err)
			}
			summary.Rejected(sub.Amount, now)
		} else {
			summary.Disputed(sub.Amount, now)
		}
		if err := r.Tenants.SaveCashSummary(ctx, summary); err != nil {
			return fmt.Errorf("guardar resumen de efectivo: %w", err)
		}
		out = sub
		ev = submissionEvent(caller, typ, sub, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.hooks.AfterCommit(ctx, *ev)
	return out, nil
}

// ListPending entregas pendientes dirigidas al llamador y, si es colector del pool, las sin reclamar.
func (s *Service) ListPending(ctx context.Context, caller ports.Caller) ([]*entity.CashSubmission, error) {
	return s.submissions.ListPendingFor(ctx, caller.Tenant, caller.UserID, caller.Roles.Can(entity.CapCollectCash))
}

// ListMine entregas hechas por el llamador.
func (s *Service) ListMine(ctx context.Context, caller ports.Caller) ([]*entity.CashSubmission, error) {
	return s.submissions.ListBySubmitter(ctx, caller.Tenant, caller.UserID)
}

// Get devuelve una entrega visible para el llamador: quien la hizo, su receptor o un colector del pool.
func (s *Service) Get(ctx context.Context, caller ports.Caller, submissionID string) (*entity.CashSubmission, error) {
	sub, err := s.submissions.GetByID(ctx, caller.Tenant, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "entrega %s no encontrada", submissionID)
	}
	visible := sub.SubmittedBy == caller.UserID ||
		(sub.ReceivedBy != nil && *sub.ReceivedBy == caller.UserID) ||
		(sub.IsUnclaimed() && caller.Roles.Can(entity.CapCollectCash))
	if !visible {
		return nil, domain.Errorf(domain.ErrPermissionDenied, "la entrega %s no es visible para el usuario", submissionID)
	}
	return sub, nil
}

// lockClaimable bloquea la entrega y valida que siga pendiente y que el llamador pueda reclamarla.
func lockClaimable(ctx context.Context, r repository.Repos, caller ports.Caller, submissionID string) (*entity.CashSubmission, error) {
	sub, err := r.Submissions.GetForUpdate(ctx, caller.Tenant, submissionID)
	if err != nil {
		return nil, fmt.Errorf("leer entrega: %w", err)
	}
	if sub == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "entrega %s no encontrada", submissionID)
	}
	if !sub.IsPending() {
		return nil, domain.Errorf(domain.ErrFailedPrecondition, "la entrega %s ya está %s", sub.ID, sub.Status)
	}
	if sub.SubmittedBy == caller.UserID {
		return nil, domain.Errorf(domain.ErrPermissionDenied, "no se puede resolver una entrega propia")
	}
	if !sub.ClaimableBy(caller.UserID) {
		return nil, domain.Errorf(domain.ErrPermissionDenied, "la entrega %s está dirigida a otro receptor", sub.ID)
	}
	if sub.IsUnclaimed() {
		if err := entity.Authorize(caller.Roles, entity.CapCollectCash); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

func checkOpen(ctx context.Context, r repository.Repos, tenant entity.Tenant) error {
	settings, err := r.Tenants.GetSettings(ctx, tenant)
	if err != nil {
		return fmt.Errorf("leer configuración del evento: %w", err)
	}
	return settings.CheckOpen()
}

// canReceiveFrom vendedores entregan a un encargado de su departamento; el resto a finanzas o caja.
func canReceiveFrom(receiver, submitter *entity.User, submitterRole entity.Role) bool {
	if receiver.ID == submitter.ID || !receiver.Roles.Can(entity.CapReceiveCash) {
		return false
	}
	if submitterRole == entity.RoleSeller {
		return receiver.Roles.Has(entity.RoleSellerManager) && receiver.ManagesDepartment(submitter.DepartmentID)
	}
	return receiver.Roles.Has(entity.RoleFinanceManager) || receiver.Roles.Has(entity.RoleCashier)
}

func firstRole(roles entity.RoleSet, order []entity.Role) entity.Role {
	for _, r := range order {
		if roles.Has(r) {
			return r
		}
	}
	return ""
}

func submissionEvent(caller ports.Caller, typ string, sub *entity.CashSubmission, now time.Time, touched ...*entity.User) *entity.LedgerEvent {
	ev := &entity.LedgerEvent{
		Tenant:     caller.Tenant,
		OrgID:      caller.Tenant.OrganizationID,
		EventID:    caller.Tenant.EventID,
		Type:       typ,
		RefID:      sub.ID,
		ActorID:    caller.UserID,
		Amount:     sub.Amount,
		OccurredAt: now,
	}
	for _, u := range touched {
		if u == nil {
			continue
		}
		ev.UserIDs = append(ev.UserIDs, u.ID)
		if u.Roles.Has(entity.RoleSeller) && u.DepartmentID != "" {
			ev.DepartmentIDs = append(ev.DepartmentIDs, u.DepartmentID)
		}
		if u.Roles.Has(entity.RoleSellerManager) {
			ev.ManagerIDs = append(ev.ManagerIDs, u.ID)
		}
	}
	return ev
}
