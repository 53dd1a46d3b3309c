// Package redis limitador de frecuencia distribuido sobre Redis (ventana fija con INCR + PEXPIRE).
package redis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var fixedWindowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RateLimiter cuenta peticiones por (ámbito, sujeto) dentro de una ventana.
type RateLimiter struct {
	client goredis.Scripter
	prefix string
}

// NewClient cliente Redis a partir de la configuración.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
}

// NewRateLimiter construye el limitador. prefix vacío usa "feria:rate_limit".
func NewRateLimiter(client goredis.Scripter, prefix string) *RateLimiter {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "feria:rate_limit"
	}
	return &RateLimiter{client: client, prefix: p}
}

// Consume registra una petición. Devuelve el conteo dentro de la ventana y los segundos hasta que se reinicia.
// Un limitador sin cliente o con límite no positivo no cuenta nada.
func (r *RateLimiter) Consume(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfter int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}
	key := fmt.Sprintf("%s:%s:%s", r.prefix, scope, subject)
	raw, err := fixedWindowScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("respuesta inesperada del limitador: %T", raw)
	}
	current, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("conteo inesperado del limitador: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}
	retryAfter = int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return int(current), retryAfter, nil
}

// Allow true si la petición entra en el límite.
func (r *RateLimiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (bool, int, error) {
	count, retryAfter, err := r.Consume(ctx, scope, subject, limit, window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, retryAfter, nil
}
