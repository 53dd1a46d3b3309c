package repository

import (
	"context"
	"time"

	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// UserRepository puerto de persistencia de usuarios y sus saldos.
// Los métodos ForUpdate solo tienen sentido dentro de una transacción (TxRunner).
type UserRepository interface {
	GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.User, error)
	// GetByAuthUID busca por el índice secundario de identidad externa.
	GetByAuthUID(ctx context.Context, tenant entity.Tenant, authUID string) (*entity.User, error)
	// LockByIDs bloquea las filas en orden ascendente de ID y las devuelve indexadas por ID.
	LockByIDs(ctx context.Context, tenant entity.Tenant, ids ...string) (map[string]*entity.User, error)
	// SaveBalances persiste los sub-registros de saldos (no toca el bloque de seguridad).
	SaveBalances(ctx context.Context, user *entity.User) error
	ListByDepartments(ctx context.Context, tenant entity.Tenant, departmentIDs []string) ([]*entity.User, error)
	ListByRole(ctx context.Context, tenant entity.Tenant, role entity.Role) ([]*entity.User, error)
	// ListManagersOf devuelve los encargados que gestionan alguno de los departamentos.
	ListManagersOf(ctx context.Context, tenant entity.Tenant, departmentIDs []string) ([]*entity.User, error)
	ResetDailyPointStats(ctx context.Context, tenant entity.Tenant, day string) error
}

// PINRepository operaciones del bloque de seguridad. Cada método es atómico por sí mismo.
type PINRepository interface {
	GetSecurity(ctx context.Context, tenant entity.Tenant, userID string) (*entity.Security, error)
	// RecordFailure incrementa el contador de forma atómica; al llegar a maxAttempts fija el bloqueo
	// hasta now+lock y reinicia el contador. Devuelve el estado resultante.
	RecordFailure(ctx context.Context, tenant entity.Tenant, userID string, now time.Time, maxAttempts int, lock time.Duration) (*entity.Security, error)
	ResetFailures(ctx context.Context, tenant entity.Tenant, userID string) error
	SetHash(ctx context.Context, tenant entity.Tenant, userID, method, hash, salt string) error
}
