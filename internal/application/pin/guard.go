// Package pin verifica la credencial secundaria (PIN) exigida antes de mover valor.
package pin

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
	"github.com/jhoicas/feria-api/pkg/logger"
)

var _ ports.PINVerifier = (*Guard)(nil)

// Config política de bloqueo.
type Config struct {
	MaxAttempts  int
	LockDuration time.Duration
	BcryptCost   int
}

// DefaultConfig 5 intentos, una hora de bloqueo.
func DefaultConfig() Config {
	return Config{MaxAttempts: 5, LockDuration: time.Hour, BcryptCost: bcrypt.DefaultCost}
}

// Guard guardián de PIN.
type Guard struct {
	pins repository.PINRepository
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
}

// NewGuard construye el guardián. Valores de cfg en cero toman los de DefaultConfig.
func NewGuard(pins repository.PINRepository, cfg Config, log *logger.Logger) *Guard {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = def.LockDuration
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = def.BcryptCost
	}
	return &Guard{pins: pins, cfg: cfg, log: log, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Verify comprueba el PIN del llamador.
// Bloqueado: failed-precondition aunque el PIN sea correcto. Incorrecto: permission-denied con
// los intentos restantes, o failed-precondition si este fallo activó el bloqueo.
func (g *Guard) Verify(ctx context.Context, caller ports.Caller, pin string) error {
	sec, err := g.pins.GetSecurity(ctx, caller.Tenant, caller.UserID)
	if err != nil {
		return fmt.Errorf("leer seguridad: %w", err)
	}
	if sec == nil {
		return domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", caller.UserID)
	}
	if !sec.HasPIN() {
		return domain.Errorf(domain.ErrFailedPrecondition, "el usuario no tiene PIN configurado")
	}
	now := g.now()
	if sec.LockedAt(now) {
		return lockedError(*sec.PINLockedUntil)
	}

	if matches(sec, pin) {
		if sec.PINFailedAttempts > 0 || sec.PINLockedUntil != nil {
			if err := g.pins.ResetFailures(ctx, caller.Tenant, caller.UserID); err != nil {
				return fmt.Errorf("reiniciar intentos: %w", err)
			}
		}
		if sec.PINMethod == entity.PINMethodLegacySHA256 {
			g.upgrade(ctx, caller, pin)
		}
		return nil
	}

	after, err := g.pins.RecordFailure(ctx, caller.Tenant, caller.UserID, now, g.cfg.MaxAttempts, g.cfg.LockDuration)
	if err != nil {
		return fmt.Errorf("registrar intento fallido: %w", err)
	}
	if after.LockedAt(now) {
		return lockedError(*after.PINLockedUntil)
	}
	remaining := g.cfg.MaxAttempts - after.PINFailedAttempts
	return domain.Errorf(domain.ErrPermissionDenied, "PIN incorrecto, quedan %d intentos", remaining)
}

// SetPIN enrola o cambia el PIN. Cambiar uno existente exige verificar el actual.
func (g *Guard) SetPIN(ctx context.Context, caller ports.Caller, currentPIN, newPIN string) error {
	if !validFormat(newPIN) {
		return domain.Errorf(domain.ErrInvalidArgument, "el PIN debe tener entre 4 y 6 dígitos")
	}
	sec, err := g.pins.GetSecurity(ctx, caller.Tenant, caller.UserID)
	if err != nil {
		return fmt.Errorf("leer seguridad: %w", err)
	}
	if sec == nil {
		return domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", caller.UserID)
	}
	if sec.HasPIN() {
		// Sin PIN actual no se verifica: un campo vacío no consume intentos.
		if currentPIN == "" {
			return domain.Errorf(domain.ErrInvalidArgument, "PIN actual requerido")
		}
		if err := g.Verify(ctx, caller, currentPIN); err != nil {
			return err
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), g.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash PIN: %w", err)
	}
	if err := g.pins.SetHash(ctx, caller.Tenant, caller.UserID, entity.PINMethodBcrypt, string(hash), ""); err != nil {
		return fmt.Errorf("guardar PIN: %w", err)
	}
	return g.pins.ResetFailures(ctx, caller.Tenant, caller.UserID)
}

// upgrade re-hashea a bcrypt tras una verificación legacy correcta. Un fallo no invalida la verificación.
func (g *Guard) upgrade(ctx context.Context, caller ports.Caller, pin string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), g.cfg.BcryptCost)
	if err == nil {
		err = g.pins.SetHash(ctx, caller.Tenant, caller.UserID, entity.PINMethodBcrypt, string(hash), "")
	}
	if err != nil && g.log != nil {
		g.log.Warn().Err(err).Str("tenant", caller.Tenant.String()).Str("user_id", caller.UserID).
			Msg("no se pudo migrar el PIN a bcrypt")
	}
}

func lockedError(until time.Time) error {
	return domain.Errorf(domain.ErrFailedPrecondition,
		"PIN bloqueado por intentos fallidos hasta %s", until.UTC().Format(time.RFC3339))
}

func matches(sec *entity.Security, pin string) bool {
	switch sec.PINMethod {
	case entity.PINMethodLegacySHA256:
		return subtle.ConstantTimeCompare([]byte(LegacyHash(sec.PINSalt, pin)), []byte(sec.PINHash)) == 1
	default:
		return bcrypt.CompareHashAndPassword([]byte(sec.PINHash), []byte(pin)) == nil
	}
}

// LegacyHash formato heredado: hex(SHA-256(salt+pin)).
func LegacyHash(salt, pin string) string {
	sum := sha256.Sum256([]byte(salt + pin))
	return hex.EncodeToString(sum[:])
}

func validFormat(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
