package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/feria-api/internal/application/identity"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/infrastructure/memstore"
	pkgjwt "github.com/jhoicas/feria-api/pkg/jwt"
)

const secret = "resolver-test-secret"

var tenant = entity.Tenant{OrganizationID: "org-1", EventID: "evt-1"}

func newResolver(t *testing.T) *identity.Resolver {
	t.Helper()
	s := memstore.New()
	s.PutUser(&entity.User{
		ID: "user-1", Tenant: tenant, AuthUID: "auth-1", Status: "active",
		Roles: entity.NewRoleSet("seller"),
	})
	s.PutUser(&entity.User{
		ID: "user-2", Tenant: tenant, AuthUID: "auth-2", Status: "inactive",
		Roles: entity.NewRoleSet("customer"),
	})
	return identity.NewResolver(s.Users(), secret)
}

func TestResolveToken_RolesDesdeElRegistroNoDelToken(t *testing.T) {
	r := newResolver(t)
	tok, err := pkgjwt.Generate(secret, "auth-1", "", []string{"financeManager"}, "test", 5)
	require.NoError(t, err)

	caller, err := r.ResolveToken(context.Background(), tenant, tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", caller.UserID)
	assert.Equal(t, "auth-1", caller.AuthUID)
	assert.True(t, caller.Roles.Has(entity.RoleSeller))
	assert.False(t, caller.Roles.Has(entity.RoleFinanceManager))
}

func TestResolveToken_TokenInvalido_Unauthenticated(t *testing.T) {
	r := newResolver(t)
	for _, tok := range []string{"", "no-es-un-jwt"} {
		_, err := r.ResolveToken(context.Background(), tenant, tok)
		assert.True(t, errors.Is(err, domain.ErrUnauthenticated), "token %q", tok)
	}
}

func TestResolve_UsuarioDeOtroTenant_NotFound(t *testing.T) {
	r := newResolver(t)
	other := entity.Tenant{OrganizationID: "org-1", EventID: "evt-otro"}
	_, err := r.Resolve(context.Background(), other, "auth-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResolve_CuentaInactiva_PermissionDenied(t *testing.T) {
	r := newResolver(t)
	_, err := r.Resolve(context.Background(), tenant, "auth-2")
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
}

func TestResolve_TenantIncompleto_InvalidArgument(t *testing.T) {
	r := newResolver(t)
	_, err := r.Resolve(context.Background(), entity.Tenant{OrganizationID: "org-1"}, "auth-1")
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}
