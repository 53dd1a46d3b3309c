package memstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/infrastructure/memstore"
)

const seedYAML = `
tenants:
  - organization_id: org-1
    event_id: evt-1
    name: Feria de invierno
    max_allocation: "250"
    users:
      - id: ana
        auth_uid: uid-ana
        roles: [sellerManager]
        managed_departments: [d1, d2]
        pin: "1234"
      - id: luis
        roles: [customer]
        points: "40.5"
    merchants:
      - id: m1
        owner_id: ana
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSeed_AplicaTenantsUsuariosYPuestos(t *testing.T) {
	seed, err := memstore.LoadSeed(writeSeed(t, seedYAML))
	require.NoError(t, err)

	s := memstore.New()
	require.NoError(t, s.Apply(seed, bcrypt.MinCost, time.Now()))

	ctx := context.Background()
	tenant := entity.Tenant{OrganizationID: "org-1", EventID: "evt-1"}

	settings, err := s.Tenants().GetSettings(ctx, tenant)
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "250", settings.MaxAllocationPerOperation.String())

	ana, err := s.Users().GetByAuthUID(ctx, tenant, "uid-ana")
	require.NoError(t, err)
	require.NotNil(t, ana)
	assert.True(t, ana.Roles.Has(entity.RoleSellerManager))
	assert.Equal(t, entity.PINMethodBcrypt, ana.Security.PINMethod)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(ana.Security.PINHash), []byte("1234")))

	luis, err := s.Users().GetByID(ctx, tenant, "luis")
	require.NoError(t, err)
	assert.Equal(t, "40.5", luis.Customer.Balance.String())
	assert.Empty(t, luis.Security.PINHash)
}

func TestApply_MontoNegativo_RetornaError(t *testing.T) {
	seed := &memstore.Seed{Tenants: []memstore.SeedTenant{{
		OrganizationID: "org-1", EventID: "evt-1",
		Users: []memstore.SeedUser{{ID: "x", Points: "-1"}},
	}}}
	assert.Error(t, memstore.New().Apply(seed, bcrypt.MinCost, time.Now()))
}

func TestApply_TenantIncompleto_RetornaError(t *testing.T) {
	seed := &memstore.Seed{Tenants: []memstore.SeedTenant{{OrganizationID: "org-1"}}}
	assert.Error(t, memstore.New().Apply(seed, bcrypt.MinCost, time.Now()))
}

func TestLoadSeed_ArchivoInexistente(t *testing.T) {
	_, err := memstore.LoadSeed(filepath.Join(t.TempDir(), "nada.yaml"))
	assert.Error(t, err)
}

func TestApply_PuestoExcedeTopeDeAsistentes_RetornaError(t *testing.T) {
	seed := &memstore.Seed{Tenants: []memstore.SeedTenant{{
		OrganizationID: "org-1", EventID: "evt-1", MaxAssistants: 2,
		Merchants: []memstore.SeedMerchant{{ID: "m1", OwnerID: "o", AssistantIDs: []string{"a1", "a2", "a3", "a4"}}},
	}}}
	s := memstore.New()
	assert.Error(t, s.Apply(seed, bcrypt.MinCost, time.Now()))

	m, err := s.Tenants().GetSettings(context.Background(), entity.Tenant{OrganizationID: "org-1", EventID: "evt-1"})
	require.NoError(t, err)
	assert.Nil(t, m, "un tenant rechazado no se registra a medias")
}

func TestApply_SinTope_UsaElDefecto(t *testing.T) {
	assistants := []string{"a1", "a2", "a3", "a4", "a5", "a6"}
	seed := &memstore.Seed{Tenants: []memstore.SeedTenant{{
		OrganizationID: "org-1", EventID: "evt-1",
		Merchants: []memstore.SeedMerchant{{ID: "m1", OwnerID: "o", AssistantIDs: assistants[:5]}},
	}}}
	require.NoError(t, memstore.New().Apply(seed, bcrypt.MinCost, time.Now()))

	seed.Tenants[0].Merchants[0].AssistantIDs = assistants
	assert.Error(t, memstore.New().Apply(seed, bcrypt.MinCost, time.Now()))
}
