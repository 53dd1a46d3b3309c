// Package memstore implementa los puertos de persistencia en memoria.
// Cada unidad atómica trabaja sobre una copia del estado y la publica solo si termina sin error.
package memstore

import (
	"context"
	"sync"

	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.TxRunner = (*Store)(nil)

type key struct {
	tenant entity.Tenant
	id     string
}

type sourceKey struct {
	tenant entity.Tenant
	kind   string
	id     string
}

// state los valores guardados nunca se mutan en sitio: cada escritura reemplaza la entrada por una copia.
type state struct {
	users     map[key]*entity.User
	authIndex map[key]string
	txs       map[key]*entity.Transaction
	subs      map[key]*entity.CashSubmission
	bound     map[sourceKey]string
	cards     map[key]*entity.PointCard
	merchants map[key]*entity.Merchant
	tenants   map[entity.Tenant]*entity.TenantSettings
	summaries map[entity.Tenant]*entity.EventCashSummary
	deptStats map[key]entity.DepartmentStats
	mgrStats  map[key]entity.SellerManagerStats
}

func newState() *state {
	return &state{
		users:     map[key]*entity.User{},
		authIndex: map[key]string{},
		txs:       map[key]*entity.Transaction{},
		subs:      map[key]*entity.CashSubmission{},
		bound:     map[sourceKey]string{},
		cards:     map[key]*entity.PointCard{},
		merchants: map[key]*entity.Merchant{},
		tenants:   map[entity.Tenant]*entity.TenantSettings{},
		summaries: map[entity.Tenant]*entity.EventCashSummary{},
		deptStats: map[key]entity.DepartmentStats{},
		mgrStats:  map[key]entity.SellerManagerStats{},
	}
}

func (s *state) clone() *state {
	return &state{
		users:     copyMap(s.users),
		authIndex: copyMap(s.authIndex),
		txs:       copyMap(s.txs),
		subs:      copyMap(s.subs),
		bound:     copyMap(s.bound),
		cards:     copyMap(s.cards),
		merchants: copyMap(s.merchants),
		tenants:   copyMap(s.tenants),
		summaries: copyMap(s.summaries),
		deptStats: copyMap(s.deptStats),
		mgrStats:  copyMap(s.mgrStats),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store almacén en memoria. Las unidades atómicas se serializan con un único mutex.
type Store struct {
	mu  sync.RWMutex
	cur *state
}

// New crea un almacén vacío.
func New() *Store {
	return &Store{cur: newState()}
}

// RunInTx ejecuta fn sobre una copia del estado; si fn falla la copia se descarta.
func (s *Store) RunInTx(ctx context.Context, fn func(r repository.Repos) error) error {
	return s.commit(ctx, func(st *state) error {
		return fn(reposFor(handle{tx: st}))
	})
}

func (s *Store) commit(ctx context.Context, fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	next := s.cur.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.cur = next
	return nil
}

func reposFor(h handle) repository.Repos {
	return repository.Repos{
		Users:        userRepo{h},
		Transactions: txRepo{h},
		Submissions:  submissionRepo{h},
		Cards:        cardRepo{h},
		Merchants:    merchantRepo{h},
		Tenants:      tenantRepo{h},
	}
}

// Users repositorio de usuarios fuera de transacción.
func (s *Store) Users() repository.UserRepository { return userRepo{handle{store: s}} }

// PINs bloque de seguridad; cada operación es atómica.
func (s *Store) PINs() repository.PINRepository { return pinRepo{handle{store: s}} }

// Tenants configuración de tenants fuera de transacción.
func (s *Store) Tenants() repository.TenantRepository { return tenantRepo{handle{store: s}} }

// Submissions lecturas del flujo de efectivo fuera de transacción.
func (s *Store) Submissions() repository.CashSubmissionRepository {
	return submissionRepo{handle{store: s}}
}

// Stats modelos derivados.
func (s *Store) Stats() repository.StatsRepository { return statsRepo{handle{store: s}} }

// handle enlaza un repositorio a una transacción en curso o al almacén.
type handle struct {
	store *Store
	tx    *state
}

func (h handle) view(fn func(st *state)) {
	if h.tx != nil {
		fn(h.tx)
		return
	}
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	fn(h.store.cur)
}

func (h handle) update(ctx context.Context, fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	return h.store.commit(ctx, fn)
}

// PutTenant registra la configuración de un tenant (aprovisionamiento externo, tests y semilla).
func (s *Store) PutTenant(t *entity.TenantSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *t
	s.cur.tenants[t.Tenant] = &c
}

// PutUser registra o reemplaza un usuario completo, bloque de seguridad incluido.
func (s *Store) PutUser(u *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneUser(u)
	s.cur.users[key{u.Tenant, u.ID}] = c
	if u.AuthUID != "" {
		s.cur.authIndex[key{u.Tenant, u.AuthUID}] = u.ID
	}
}

// PutMerchant registra o reemplaza un puesto.
func (s *Store) PutMerchant(m *entity.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.merchants[key{m.Tenant, m.ID}] = cloneMerchant(m)
}

// PutCard registra o reemplaza una tarjeta.
func (s *Store) PutCard(c *entity.PointCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.cards[key{c.Tenant, c.ID}] = cloneCard(c)
}
