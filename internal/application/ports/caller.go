package ports

import (
	"context"

	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// Caller contexto de servicio explícito: identidad verificada del llamador, resuelta del lado
// del servidor en cada petición. Nunca se construye con datos del payload.
type Caller struct {
	Tenant  entity.Tenant
	UserID  string
	AuthUID string
	Roles   entity.RoleSet
}

// CommitHook se invoca de forma síncrona justo después de confirmar una unidad atómica.
// Sus fallos nunca afectan a la operación que lo disparó.
type CommitHook interface {
	AfterCommit(ctx context.Context, ev entity.LedgerEvent)
}

// Hooks lista de hooks post-commit ejecutados en orden.
type Hooks []CommitHook

// AfterCommit implementa CommitHook sobre la lista.
func (h Hooks) AfterCommit(ctx context.Context, ev entity.LedgerEvent) {
	for _, hook := range h {
		if hook != nil {
			hook.AfterCommit(ctx, ev)
		}
	}
}

// PINVerifier verificación de la credencial secundaria antes de mover valor.
type PINVerifier interface {
	Verify(ctx context.Context, caller Caller, pin string) error
}
