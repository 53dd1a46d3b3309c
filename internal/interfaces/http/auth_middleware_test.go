package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/feria-api/internal/application/cashsubmission"
	"github.com/jhoicas/feria-api/internal/application/identity"
	"github.com/jhoicas/feria-api/internal/application/ledger"
	"github.com/jhoicas/feria-api/internal/application/pin"
	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/application/stats"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/infrastructure/memstore"
	apphttp "github.com/jhoicas/feria-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/feria-api/pkg/jwt"
	"github.com/jhoicas/feria-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testIssuer    = "feria-test"
	testPIN       = "1234"
	basePath      = "/api/orgs/org-1/events/evt-1"
)

var testTenant = entity.Tenant{OrganizationID: "org-1", EventID: "evt-1"}

// denyLimiter rechaza todo a partir de la petición número allow+1.
type denyLimiter struct {
	mu    sync.Mutex
	allow int
	seen  int
	err   error
}

func (d *denyLimiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (bool, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, 0, d.err
	}
	d.seen++
	return d.seen <= d.allow, 7, nil
}

type testApp struct {
	app   *fiber.App
	store *memstore.Store
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// buildTestApp arma la API completa sobre el almacén en memoria.
func buildTestApp(t *testing.T, limiter apphttp.Limiter) *testApp {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPIN), bcrypt.MinCost)
	require.NoError(t, err)
	sec := entity.Security{PINHash: string(hash), PINMethod: entity.PINMethodBcrypt}

	s := memstore.New()
	s.PutTenant(&entity.TenantSettings{Tenant: testTenant, Status: entity.TenantStatusActive, MaxAllocationPerOperation: dec(100)})
	s.PutTenant(&entity.TenantSettings{Tenant: entity.Tenant{OrganizationID: "org-1", EventID: "evt-2"}, Status: entity.TenantStatusActive})
	put := func(u *entity.User) {
		u.Tenant = testTenant
		u.AuthUID = "uid-" + u.ID
		u.Status = "active"
		u.Security = sec
		s.PutUser(u)
	}
	put(&entity.User{ID: "manager", Name: "Ana", Roles: entity.NewRoleSet("sellerManager"),
		Manager: entity.ManagerAccount{ManagedDepartments: []string{"d1"}}})
	put(&entity.User{ID: "seller", Roles: entity.NewRoleSet("seller"), DepartmentID: "d1"})
	put(&entity.User{ID: "customer", Roles: entity.NewRoleSet("customer"),
		Customer: entity.PointsAccount{Balance: dec(100), TotalReceived: dec(100)}})
	put(&entity.User{ID: "finance", Roles: entity.NewRoleSet("financeManager")})
	put(&entity.User{ID: "owner", Roles: entity.NewRoleSet("merchant"), MerchantID: "m1"})
	s.PutMerchant(&entity.Merchant{ID: "m1", Tenant: testTenant, OwnerID: "owner"})

	log := logger.Nop()
	cfg := pin.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	guard := pin.NewGuard(s.PINs(), cfg, log)
	agg := stats.NewAggregator(s.Users(), s.Stats(), s.Tenants(), log)
	hooks := ports.Hooks{agg}

	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler})
	apphttp.Router(app, apphttp.RouterDeps{
		Resolver:       identity.NewResolver(s.Users(), testJWTSecret),
		PIN:            guard,
		Engine:         ledger.NewEngine(s, guard, hooks, ledger.DefaultConfig()),
		Submissions:    cashsubmission.NewService(s, s.Submissions(), guard, hooks),
		Stats:          agg,
		Limiter:        limiter,
		RateLimit:      apphttp.RateLimitConfig{Requests: 10, Window: time.Minute},
		RequestTimeout: 5 * time.Second,
		Log:            log,
	})
	return &testApp{app: app, store: s}
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, "uid-"+userID, "", nil, testIssuer, 60)
	require.NoError(t, err)
	return "Bearer " + tok
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do lanza la petición y decodifica el sobre.
func (ta *testApp) do(t *testing.T, method, path, auth string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests AuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_SinHeader_Retorna401(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodGet, basePath+"/me", "", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "unauthenticated", env.Error.Code)
}

func TestAuthMiddleware_FormatoIncorrecto_Retorna401(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, _ := ta.do(t, http.MethodGet, basePath+"/me", "Token abc", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_TokenInvalido_Retorna401(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodGet, basePath+"/me", "Bearer token.invalido.aqui", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", env.Error.Code)
}

func TestAuthMiddleware_OtroEvento_NoResuelveUsuario(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodGet, "/api/orgs/org-1/events/evt-2/me", bearer(t, "customer"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not-found", env.Error.Code)
}

func TestAuthMiddleware_RolesDelRegistroNoDelToken(t *testing.T) {
	ta := buildTestApp(t, nil)
	tok, err := pkgjwt.Generate(testJWTSecret, "uid-customer", "", []string{"eventManager"}, testIssuer, 60)
	require.NoError(t, err)

	resp, env := ta.do(t, http.MethodGet, basePath+"/me", "Bearer "+tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, []any{"customer"}, me["roles"])
}

func TestGetCaller_DisponibleEnHandler(t *testing.T) {
	ta := buildTestApp(t, nil)
	app := fiber.New()
	app.Get("/api/orgs/:orgId/events/:eventId/whoami",
		apphttp.AuthMiddleware(identity.NewResolver(ta.store.Users(), testJWTSecret)),
		func(c *fiber.Ctx) error {
			caller, found := apphttp.GetCaller(c)
			require.True(t, found)
			return c.JSON(fiber.Map{"user_id": caller.UserID, "tenant": caller.Tenant.String()})
		})

	req := httptest.NewRequest(http.MethodGet, basePath+"/whoami", nil)
	req.Header.Set("Authorization", bearer(t, "manager"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "manager", body["user_id"])
	assert.Equal(t, "org-1/evt-1", body["tenant"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests de middleware transversal
// ──────────────────────────────────────────────────────────────────────────────

func TestRateLimit_Excedido_Retorna429ConRetryAfter(t *testing.T) {
	ta := buildTestApp(t, &denyLimiter{allow: 1})
	body := map[string]any{"pin": testPIN}

	resp, _ := ta.do(t, http.MethodPost, basePath+"/pin/verify", bearer(t, "customer"), body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := ta.do(t, http.MethodPost, basePath+"/pin/verify", bearer(t, "customer"), body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "resource-exhausted", env.Error.Code)
	assert.Equal(t, "7", resp.Header.Get("Retry-After"))
}

func TestRateLimit_RedisCaido_DejaPasar(t *testing.T) {
	ta := buildTestApp(t, &denyLimiter{err: errors.New("redis caído")})
	resp, _ := ta.do(t, http.MethodPost, basePath+"/pin/verify", bearer(t, "customer"), map[string]any{"pin": testPIN})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestTimeout_Retorna504DeadlineExceeded(t *testing.T) {
	app := fiber.New()
	app.Get("/lento", apphttp.RequestTimeout(10*time.Millisecond), func(c *fiber.Ctx) error {
		<-c.UserContext().Done()
		return c.SendStatus(fiber.StatusOK)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/lento", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "deadline-exceeded")
}

func TestErrorHandler_RutaInexistente(t *testing.T) {
	ta := buildTestApp(t, nil)
	resp, env := ta.do(t, http.MethodGet, "/api/nada", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not-found", env.Error.Code)
}
