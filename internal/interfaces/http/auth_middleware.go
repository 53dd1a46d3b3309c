package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// LocalCaller clave en c.Locals para el llamador resuelto.
const LocalCaller = "caller"

// CallerResolver verificación del token y resolución del llamador dentro del tenant de la ruta.
// Lo implementa *identity.Resolver.
type CallerResolver interface {
	ResolveToken(ctx context.Context, tenant entity.Tenant, token string) (ports.Caller, error)
}

// AuthMiddleware valida el Bearer Token, toma el tenant de :orgId/:eventId y carga el llamador en Locals.
// Los roles salen siempre del registro almacenado, nunca de los claims.
func AuthMiddleware(resolver CallerResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fail(c, domain.CodeUnauthenticated, "Authorization header requerido")
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fail(c, domain.CodeUnauthenticated, "formato: Bearer <token>")
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return fail(c, domain.CodeUnauthenticated, "token vacío")
		}
		tenant := entity.Tenant{OrganizationID: c.Params("orgId"), EventID: c.Params("eventId")}
		caller, err := resolver.ResolveToken(c.UserContext(), tenant, token)
		if err != nil {
			return respondError(c, err)
		}
		c.Locals(LocalCaller, caller)
		return c.Next()
	}
}

// GetCaller devuelve el llamador resuelto (después de AuthMiddleware).
func GetCaller(c *fiber.Ctx) (ports.Caller, bool) {
	caller, ok := c.Locals(LocalCaller).(ports.Caller)
	return caller, ok
}
