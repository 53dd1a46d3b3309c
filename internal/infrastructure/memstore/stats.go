package memstore

import (
	"context"
	"sort"

	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
)

var _ repository.StatsRepository = statsRepo{}

type statsRepo struct{ h handle }

func (r statsRepo) UpsertDepartment(ctx context.Context, s *entity.DepartmentStats) error {
	return r.h.update(ctx, func(st *state) error {
		st.deptStats[key{s.Tenant, s.DepartmentID}] = *s
		return nil
	})
}

func (r statsRepo) UpsertManager(ctx context.Context, s *entity.SellerManagerStats) error {
	return r.h.update(ctx, func(st *state) error {
		st.mgrStats[key{s.Tenant, s.ManagerID}] = *s
		return nil
	})
}

func (r statsRepo) GetDepartment(ctx context.Context, tenant entity.Tenant, departmentID string) (*entity.DepartmentStats, error) {
	var out *entity.DepartmentStats
	r.h.view(func(st *state) {
		if s, ok := st.deptStats[key{tenant, departmentID}]; ok {
			out = &s
		}
	})
	return out, nil
}

func (r statsRepo) GetManager(ctx context.Context, tenant entity.Tenant, managerID string) (*entity.SellerManagerStats, error) {
	var out *entity.SellerManagerStats
	r.h.view(func(st *state) {
		if s, ok := st.mgrStats[key{tenant, managerID}]; ok {
			out = &s
		}
	})
	return out, nil
}

// ListDepartmentIDs departamentos conocidos: los de los vendedores y los gestionados por encargados.
func (r statsRepo) ListDepartmentIDs(ctx context.Context, tenant entity.Tenant) ([]string, error) {
	seen := map[string]struct{}{}
	r.h.view(func(st *state) {
		for k, u := range st.users {
			if k.tenant != tenant {
				continue
			}
			if u.DepartmentID != "" {
				seen[u.DepartmentID] = struct{}{}
			}
			for _, d := range u.Manager.ManagedDepartments {
				seen[d] = struct{}{}
			}
		}
	})
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}
