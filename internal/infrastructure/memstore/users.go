package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var (
	_ repository.UserRepository = userRepo{}
	_ repository.PINRepository  = pinRepo{}
)

type userRepo struct{ h handle }

func (r userRepo) GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.User, error) {
	var out *entity.User
	r.h.view(func(st *state) {
		if u, ok := st.users[key{tenant, id}]; ok {
			out = cloneUser(u)
		}
	})
	return out, nil
}

func (r userRepo) GetByAuthUID(ctx context.Context, tenant entity.Tenant, authUID string) (*entity.User, error) {
	var out *entity.User
	r.h.view(func(st *state) {
		id, ok := st.authIndex[key{tenant, authUID}]
		if !ok {
			return
		}
		if u, ok := st.users[key{tenant, id}]; ok {
			out = cloneUser(u)
		}
	})
	return out, nil
}

// LockByIDs en memoria el bloqueo lo da la unidad atómica; aquí solo se leen las filas.
func (r userRepo) LockByIDs(ctx context.Context, tenant entity.Tenant, ids ...string) (map[string]*entity.User, error) {
	out := make(map[string]*entity.User, len(ids))
	r.h.view(func(st *state) {
		for _, id := range ids {
			if u, ok := st.users[key{tenant, id}]; ok {
				out[id] = cloneUser(u)
			}
		}
	})
	return out, nil
}

func (r userRepo) SaveBalances(ctx context.Context, user *entity.User) error {
	return r.h.update(ctx, func(st *state) error {
		k := key{user.Tenant, user.ID}
		prev, ok := st.users[k]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", user.ID)
		}
		next := cloneUser(user)
		next.Security = cloneUser(prev).Security
		st.users[k] = next
		return nil
	})
}

func (r userRepo) ListByDepartments(ctx context.Context, tenant entity.Tenant, departmentIDs []string) ([]*entity.User, error) {
	want := toSet(departmentIDs)
	return r.filter(tenant, func(u *entity.User) bool {
		_, ok := want[u.DepartmentID]
		return ok && u.Roles.Has(entity.RoleSeller)
	}), nil
}

func (r userRepo) ListByRole(ctx context.Context, tenant entity.Tenant, role entity.Role) ([]*entity.User, error) {
	return r.filter(tenant, func(u *entity.User) bool { return u.Roles.Has(role) }), nil
}

func (r userRepo) ListManagersOf(ctx context.Context, tenant entity.Tenant, departmentIDs []string) ([]*entity.User, error) {
	return r.filter(tenant, func(u *entity.User) bool {
		if !u.Roles.Has(entity.RoleSellerManager) {
			return false
		}
		for _, d := range departmentIDs {
			if u.ManagesDepartment(d) {
				return true
			}
		}
		return false
	}), nil
}

func (r userRepo) ResetDailyPointStats(ctx context.Context, tenant entity.Tenant, day string) error {
	return r.h.update(ctx, func(st *state) error {
		for k, u := range st.users {
			if k.tenant != tenant || !u.Roles.Has(entity.RolePointSeller) || u.PointSale.TodayDate == day {
				continue
			}
			next := cloneUser(u)
			next.PointSale.TodayDate = day
			next.PointSale.TodayIssued = decimal.Zero
			st.users[k] = next
		}
		return nil
	})
}

func (r userRepo) filter(tenant entity.Tenant, keep func(u *entity.User) bool) []*entity.User {
	var out []*entity.User
	r.h.view(func(st *state) {
		for k, u := range st.users {
			if k.tenant == tenant && keep(u) {
				out = append(out, cloneUser(u))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

type pinRepo struct{ h handle }

func (r pinRepo) GetSecurity(ctx context.Context, tenant entity.Tenant, userID string) (*entity.Security, error) {
	var out *entity.Security
	r.h.view(func(st *state) {
		if u, ok := st.users[key{tenant, userID}]; ok {
			sec := cloneUser(u).Security
			out = &sec
		}
	})
	return out, nil
}

func (r pinRepo) RecordFailure(ctx context.Context, tenant entity.Tenant, userID string, now time.Time, maxAttempts int, lock time.Duration) (*entity.Security, error) {
	var out *entity.Security
	err := r.h.update(ctx, func(st *state) error {
		k := key{tenant, userID}
		u, ok := st.users[k]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", userID)
		}
		next := cloneUser(u)
		next.Security.PINFailedAttempts++
		if next.Security.PINFailedAttempts >= maxAttempts {
			until := now.Add(lock)
			next.Security.PINLockedUntil = &until
			next.Security.PINFailedAttempts = 0
		}
		st.users[k] = next
		sec := cloneUser(next).Security
		out = &sec
		return nil
	})
	return out, err
}

func (r pinRepo) ResetFailures(ctx context.Context, tenant entity.Tenant, userID string) error {
	return r.mutate(ctx, tenant, userID, func(sec *entity.Security) {
		sec.PINFailedAttempts = 0
		sec.PINLockedUntil = nil
	})
}

func (r pinRepo) SetHash(ctx context.Context, tenant entity.Tenant, userID, method, hash, salt string) error {
	return r.mutate(ctx, tenant, userID, func(sec *entity.Security) {
		sec.PINMethod = method
		sec.PINHash = hash
		sec.PINSalt = salt
	})
}

func (r pinRepo) mutate(ctx context.Context, tenant entity.Tenant, userID string, fn func(sec *entity.Security)) error {
	return r.h.update(ctx, func(st *state) error {
		k := key{tenant, userID}
		u, ok := st.users[k]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", userID)
		}
		next := cloneUser(u)
		fn(&next.Security)
		st.users[k] = next
		return nil
	})
}
