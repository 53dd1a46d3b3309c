// Package stats mantiene los modelos derivados por departamento y por encargado.
// Cada recálculo relee el conjunto completo de miembros; nunca aplica deltas.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
	"github.com/jhoicas/feria-api/pkg/logger"
)

var _ ports.CommitHook = (*Aggregator)(nil)

// Aggregator hook post-commit y consultas de estadísticas.
type Aggregator struct {
	users   repository.UserRepository
	stats   repository.StatsRepository
	tenants repository.TenantRepository
	log     *logger.Logger
	now     func() time.Time
}

// NewAggregator construye el agregador.
func NewAggregator(users repository.UserRepository, stats repository.StatsRepository, tenants repository.TenantRepository, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{users: users, stats: stats, tenants: tenants, log: log, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// AfterCommit recalcula lo afectado por el evento. Los fallos se registran y no se propagan.
func (a *Aggregator) AfterCommit(ctx context.Context, ev entity.LedgerEvent) {
	if len(ev.DepartmentIDs) == 0 && len(ev.ManagerIDs) == 0 {
		return
	}
	if err := a.Recompute(ctx, ev.Tenant, ev.DepartmentIDs, ev.ManagerIDs); err != nil {
		a.log.Error().Err(err).
			Str("tenant", ev.Tenant.String()).
			Str("event", ev.Type).
			Str("ref_id", ev.RefID).
			Msg("recalcular estadísticas")
	}
}

// Recompute recalcula los departamentos indicados, los encargados indicados y los que gestionan esos departamentos.
func (a *Aggregator) Recompute(ctx context.Context, tenant entity.Tenant, departmentIDs, managerIDs []string) error {
	managers := toSet(managerIDs)
	if len(departmentIDs) > 0 {
		owners, err := a.users.ListManagersOf(ctx, tenant, departmentIDs)
		if err != nil {
			return fmt.Errorf("listar encargados: %w", err)
		}
		for _, m := range owners {
			managers[m.ID] = struct{}{}
		}
	}
	var errs []error
	for _, d := range sortedSet(toSet(departmentIDs)) {
		if _, err := a.RecomputeDepartment(ctx, tenant, d); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range sortedSet(managers) {
		if _, err := a.RecomputeManager(ctx, tenant, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecomputeDepartment suma los saldos de todos los vendedores del departamento.
func (a *Aggregator) RecomputeDepartment(ctx context.Context, tenant entity.Tenant, departmentID string) (*entity.DepartmentStats, error) {
	sellers, err := a.users.ListByDepartments(ctx, tenant, []string{departmentID})
	if err != nil {
		return nil, fmt.Errorf("listar vendedores de %s: %w", departmentID, err)
	}
	out := &entity.DepartmentStats{Tenant: tenant, DepartmentID: departmentID, UpdatedAt: a.now()}
	for _, s := range sellers {
		out.SellerCount++
		out.TotalAvailablePoints = out.TotalAvailablePoints.Add(s.Seller.AvailablePoints)
		out.TotalPendingCollection = out.TotalPendingCollection.Add(s.Seller.PendingCollection)
		out.TotalSubmitted = out.TotalSubmitted.Add(s.Seller.TotalSubmitted)
		out.TotalSold = out.TotalSold.Add(s.Seller.TotalSold)
	}
	if err := a.stats.UpsertDepartment(ctx, out); err != nil {
		return nil, fmt.Errorf("guardar estadísticas de %s: %w", departmentID, err)
	}
	return out, nil
}

// RecomputeManager combina el registro del encargado con los vendedores de sus departamentos.
func (a *Aggregator) RecomputeManager(ctx context.Context, tenant entity.Tenant, managerID string) (*entity.SellerManagerStats, error) {
	m, err := a.users.GetByID(ctx, tenant, managerID)
	if err != nil {
		return nil, fmt.Errorf("leer encargado %s: %w", managerID, err)
	}
	if m == nil || !m.Roles.Has(entity.RoleSellerManager) {
		return nil, domain.Errorf(domain.ErrNotFound, "encargado %s no encontrado", managerID)
	}
	out := &entity.SellerManagerStats{
		Tenant:          tenant,
		ManagerID:       m.ID,
		DepartmentCount: len(m.Manager.ManagedDepartments),
		PointsAllocated: m.Manager.PointsAllocated,
		CashOnHand:      m.Cash.CashOnHand,
		CashReceived:    m.Cash.TotalReceived,
		UpdatedAt:       a.now(),
	}
	if len(m.Manager.ManagedDepartments) > 0 {
		sellers, err := a.users.ListByDepartments(ctx, tenant, m.Manager.ManagedDepartments)
		if err != nil {
			return nil, fmt.Errorf("listar vendedores de %s: %w", managerID, err)
		}
		for _, s := range sellers {
			out.SellerCount++
			out.SellersAvailablePoints = out.SellersAvailablePoints.Add(s.Seller.AvailablePoints)
			out.SellersPendingCollection = out.SellersPendingCollection.Add(s.Seller.PendingCollection)
			out.SellersSubmitted = out.SellersSubmitted.Add(s.Seller.TotalSubmitted)
		}
	}
	if err := a.stats.UpsertManager(ctx, out); err != nil {
		return nil, fmt.Errorf("guardar estadísticas de %s: %w", managerID, err)
	}
	return out, nil
}

// RecomputeTenant recálculo completo de un evento.
func (a *Aggregator) RecomputeTenant(ctx context.Context, tenant entity.Tenant) error {
	depts, err := a.stats.ListDepartmentIDs(ctx, tenant)
	if err != nil {
		return fmt.Errorf("listar departamentos: %w", err)
	}
	managers, err := a.users.ListByRole(ctx, tenant, entity.RoleSellerManager)
	if err != nil {
		return fmt.Errorf("listar encargados: %w", err)
	}
	ids := make([]string, 0, len(managers))
	for _, m := range managers {
		ids = append(ids, m.ID)
	}
	return a.Recompute(ctx, tenant, depts, ids)
}

// RecomputeAll recálculo completo de todos los eventos activos. Un tenant con error no detiene al resto.
func (a *Aggregator) RecomputeAll(ctx context.Context) error {
	tenants, err := a.tenants.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listar eventos activos: %w", err)
	}
	var errs []error
	for _, t := range tenants {
		if err := a.RecomputeTenant(ctx, t); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

// ResetDaily reinicia las estadísticas "hoy" de los vendedores de puntos de todos los eventos activos.
func (a *Aggregator) ResetDaily(ctx context.Context) error {
	tenants, err := a.tenants.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listar eventos activos: %w", err)
	}
	day := a.now().Format("2006-01-02")
	var errs []error
	for _, t := range tenants {
		if err := a.users.ResetDailyPointStats(ctx, t, day); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

// Department estadísticas de un departamento. Un encargado sin otro rol de supervisión solo ve los suyos.
func (a *Aggregator) Department(ctx context.Context, caller ports.Caller, departmentID string) (*entity.DepartmentStats, error) {
	if err := a.authorize(ctx, caller, departmentID); err != nil {
		return nil, err
	}
	s, err := a.stats.GetDepartment(ctx, caller.Tenant, departmentID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return a.RecomputeDepartment(ctx, caller.Tenant, departmentID)
	}
	return s, nil
}

// Manager estadísticas de un encargado. Un encargado solo ve las propias.
func (a *Aggregator) Manager(ctx context.Context, caller ports.Caller, managerID string) (*entity.SellerManagerStats, error) {
	if err := entity.Authorize(caller.Roles, entity.CapViewStats); err != nil {
		return nil, err
	}
	if !supervises(caller.Roles) && caller.UserID != managerID {
		return nil, domain.Errorf(domain.ErrPermissionDenied, "solo puede consultar sus propias estadísticas")
	}
	s, err := a.stats.GetManager(ctx, caller.Tenant, managerID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return a.RecomputeManager(ctx, caller.Tenant, managerID)
	}
	return s, nil
}

func (a *Aggregator) authorize(ctx context.Context, caller ports.Caller, departmentID string) error {
	if err := entity.Authorize(caller.Roles, entity.CapViewStats); err != nil {
		return err
	}
	if supervises(caller.Roles) {
		return nil
	}
	u, err := a.users.GetByID(ctx, caller.Tenant, caller.UserID)
	if err != nil {
		return err
	}
	if u == nil || !u.ManagesDepartment(departmentID) {
		return domain.Errorf(domain.ErrPermissionDenied, "el departamento %s no está a su cargo", departmentID)
	}
	return nil
}

func supervises(roles entity.RoleSet) bool {
	return roles.Has(entity.RoleEventManager) || roles.Has(entity.RoleFinanceManager)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
