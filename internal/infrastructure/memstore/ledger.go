package memstore

import (
	"context"
	"sort"

	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var (
	_ repository.TransactionRepository    = txRepo{}
	_ repository.CashSubmissionRepository = submissionRepo{}
	_ repository.PointCardRepository      = cardRepo{}
	_ repository.MerchantRepository       = merchantRepo{}
	_ repository.TenantRepository         = tenantRepo{}
)

type txRepo struct{ h handle }

func (r txRepo) Create(ctx context.Context, t *entity.Transaction) error {
	return r.h.update(ctx, func(st *state) error {
		k := key{t.Tenant, t.ID}
		if _, ok := st.txs[k]; ok {
			return domain.Errorf(domain.ErrAlreadyExists, "transacción %s ya existe", t.ID)
		}
		st.txs[k] = cloneTx(t)
		return nil
	})
}

func (r txRepo) GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.Transaction, error) {
	var out *entity.Transaction
	r.h.view(func(st *state) {
		if t, ok := st.txs[key{tenant, id}]; ok {
			out = cloneTx(t)
		}
	})
	return out, nil
}

func (r txRepo) GetByIDs(ctx context.Context, tenant entity.Tenant, ids []string) (map[string]*entity.Transaction, error) {
	out := make(map[string]*entity.Transaction, len(ids))
	r.h.view(func(st *state) {
		for _, id := range ids {
			if t, ok := st.txs[key{tenant, id}]; ok {
				out[id] = cloneTx(t)
			}
		}
	})
	return out, nil
}

func (r txRepo) UpdateStatus(ctx context.Context, t *entity.Transaction) error {
	return r.h.update(ctx, func(st *state) error {
		k := key{t.Tenant, t.ID}
		prev, ok := st.txs[k]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "transacción %s no encontrada", t.ID)
		}
		next := cloneTx(prev)
		next.Status = t.Status
		next.CollectedBy = t.CollectedBy
		next.History = append([]entity.StatusChange(nil), t.History...)
		next.UpdatedAt = t.UpdatedAt
		st.txs[k] = next
		return nil
	})
}

type submissionRepo struct{ h handle }

func (r submissionRepo) Create(ctx context.Context, s *entity.CashSubmission) error {
	return r.h.update(ctx, func(st *state) error {
		k := key{s.Tenant, s.ID}
		if _, ok := st.subs[k]; ok {
			return domain.Errorf(domain.ErrAlreadyExists, "entrega %s ya existe", s.ID)
		}
		st.subs[k] = cloneSubmission(s)
		return nil
	})
}

func (r submissionRepo) GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.CashSubmission, error) {
	var out *entity.CashSubmission
	r.h.view(func(st *state) {
		if s, ok := st.subs[key{tenant, id}]; ok {
			out = cloneSubmission(s)
		}
	})
	return out, nil
}

func (r submissionRepo) GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.CashSubmission, error) {
	return r.GetByID(ctx, tenant, id)
}

func (r submissionRepo) GetByIDs(ctx context.Context, tenant entity.Tenant, ids []string) (map[string]*entity.CashSubmission, error) {
	out := make(map[string]*entity.CashSubmission, len(ids))
	r.h.view(func(st *state) {
		for _, id := range ids {
			if s, ok := st.subs[key{tenant, id}]; ok {
				out[id] = cloneSubmission(s)
			}
		}
	})
	return out, nil
}

func (r submissionRepo) Update(ctx context.Context, s *entity.CashSubmission) error {
	return r.h.update(ctx, func(st *state) error {
		k := key{s.Tenant, s.ID}
		if _, ok := st.subs[k]; !ok {
			return domain.Errorf(domain.ErrNotFound, "entrega %s no encontrada", s.ID)
		}
		st.subs[k] = cloneSubmission(s)
		return nil
	})
}

func (r submissionRepo) BindSources(ctx context.Context, tenant entity.Tenant, submissionID string, sources []entity.SourceRef) error {
	return r.h.update(ctx, func(st *state) error {
		for _, src := range sources {
			sk := sourceKey{tenant, src.Kind, src.ID}
			if owner, ok := st.bound[sk]; ok && owner != submissionID {
				return domain.Errorf(domain.ErrAlreadyExists, "la fuente %s/%s ya respalda otra entrega", src.Kind, src.ID)
			}
			st.bound[sk] = submissionID
		}
		return nil
	})
}

func (r submissionRepo) ReleaseSources(ctx context.Context, tenant entity.Tenant, submissionID string) error {
	return r.h.update(ctx, func(st *state) error {
		for sk, owner := range st.bound {
			if sk.tenant == tenant && owner == submissionID {
				delete(st.bound, sk)
			}
		}
		return nil
	})
}

func (r submissionRepo) ListPendingFor(ctx context.Context, tenant entity.Tenant, receiverID string, includePool bool) ([]*entity.CashSubmission, error) {
	return r.filter(tenant, func(s *entity.CashSubmission) bool {
		if !s.IsPending() {
			return false
		}
		if s.IsUnclaimed() {
			return includePool
		}
		return *s.ReceivedBy == receiverID
	}), nil
}

func (r submissionRepo) ListBySubmitter(ctx context.Context, tenant entity.Tenant, submitterID string) ([]*entity.CashSubmission, error) {
	return r.filter(tenant, func(s *entity.CashSubmission) bool { return s.SubmittedBy == submitterID }), nil
}

func (r submissionRepo) filter(tenant entity.Tenant, keep func(s *entity.CashSubmission) bool) []*entity.CashSubmission {
	var out []*entity.CashSubmission
	r.h.view(func(st *state) {
		for k, s := range st.subs {
			if k.tenant == tenant && keep(s) {
				out = append(out, cloneSubmission(s))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type cardRepo struct{ h handle }

func (r cardRepo) Create(ctx context.Context, c *entity.PointCard) error {
	return r.h.update(ctx, func(st *state) error {
		k := key{c.Tenant, c.ID}
		if _, ok := st.cards[k]; ok {
			return domain.Errorf(domain.ErrAlreadyExists, "tarjeta %s ya existe", c.ID)
		}
		st.cards[k] = cloneCard(c)
		return nil
	})
}

func (r cardRepo) GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.PointCard, error) {
	var out *entity.PointCard
	r.h.view(func(st *state) {
		if c, ok := st.cards[key{tenant, id}]; ok {
			out = cloneCard(c)
		}
	})
	return out, nil
}

func (r cardRepo) Update(ctx context.Context, c *entity.PointCard) error {
	return r.h.update(ctx, func(st *state) error {
		k := key{c.Tenant, c.ID}
		if _, ok := st.cards[k]; !ok {
			return domain.Errorf(domain.ErrNotFound, "tarjeta %s no encontrada", c.ID)
		}
		st.cards[k] = cloneCard(c)
		return nil
	})
}

type merchantRepo struct{ h handle }

func (r merchantRepo) GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.Merchant, error) {
	var out *entity.Merchant
	r.h.view(func(st *state) {
		if m, ok := st.merchants[key{tenant, id}]; ok {
			out = cloneMerchant(m)
		}
	})
	return out, nil
}

func (r merchantRepo) GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.Merchant, error) {
	return r.GetByID(ctx, tenant, id)
}

func (r merchantRepo) UpdateRevenue(ctx context.Context, m *entity.Merchant) error {
	return r.h.update(ctx, func(st *state) error {
		k := key{m.Tenant, m.ID}
		prev, ok := st.merchants[k]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "puesto %s no encontrado", m.ID)
		}
		next := cloneMerchant(prev)
		next.Revenue = m.Revenue
		next.UpdatedAt = m.UpdatedAt
		st.merchants[k] = next
		return nil
	})
}

type tenantRepo struct{ h handle }

func (r tenantRepo) GetSettings(ctx context.Context, tenant entity.Tenant) (*entity.TenantSettings, error) {
	var out *entity.TenantSettings
	r.h.view(func(st *state) {
		if t, ok := st.tenants[tenant]; ok {
			c := *t
			out = &c
		}
	})
	return out, nil
}

func (r tenantRepo) ListActive(ctx context.Context) ([]entity.Tenant, error) {
	var out []entity.Tenant
	r.h.view(func(st *state) {
		for t, s := range st.tenants {
			if s.Status == "" || s.Status == entity.TenantStatusActive {
				out = append(out, t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// GetCashSummaryForUpdate nunca devuelve nil: un tenant sin movimientos arranca con un resumen vacío.
func (r tenantRepo) GetCashSummaryForUpdate(ctx context.Context, tenant entity.Tenant) (*entity.EventCashSummary, error) {
	out := entity.NewEventCashSummary(tenant)
	r.h.view(func(st *state) {
		if s, ok := st.summaries[tenant]; ok {
			out = cloneSummary(s)
		}
	})
	return out, nil
}

func (r tenantRepo) SaveCashSummary(ctx context.Context, s *entity.EventCashSummary) error {
	return r.h.update(ctx, func(st *state) error {
		st.summaries[s.Tenant] = cloneSummary(s)
		return nil
	})
}
