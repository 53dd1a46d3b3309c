package http

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/pkg/logger"
)

// RequestTimeout ejecuta el resto de la cadena con un contexto con plazo.
// Si el plazo vence la respuesta es deadline-exceeded: el resultado de la operación es desconocido.
func RequestTimeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)

		err := c.Next()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fail(c, CodeDeadlineExceeded, deadlineMessage)
		}
		return err
	}
}

// Limiter limitador distribuido. Lo implementa *redis.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (bool, int, error)
}

// RateLimitConfig límite por usuario y tenant.
type RateLimitConfig struct {
	Scope    string
	Requests int
	Window   time.Duration
}

// RateLimit limita por llamador; va después de AuthMiddleware. Si Redis falla la petición pasa.
func RateLimit(limiter Limiter, cfg RateLimitConfig, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, found := GetCaller(c)
		if limiter == nil || !found {
			return c.Next()
		}
		allowed, retryAfter, err := limiter.Allow(c.UserContext(), cfg.Scope, caller.Tenant.String()+"/"+caller.UserID, cfg.Requests, cfg.Window)
		if err != nil {
			log.Warn().Err(err).Str("scope", cfg.Scope).Msg("rate limiter no disponible")
			return c.Next()
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return fail(c, CodeResourceExhausted, "demasiadas operaciones, intente en "+strconv.Itoa(retryAfter)+"s")
		}
		return c.Next()
	}
}

// AccessLog registra método, ruta, estado y latencia de cada petición.
func AccessLog(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		ev := log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http")
		return err
	}
}
