package repository

import (
	"context"

	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// TransactionRepository registro de movimientos (solo inserción + estado/historial).
type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.Transaction, error)
	GetByIDs(ctx context.Context, tenant entity.Tenant, ids []string) (map[string]*entity.Transaction, error)
	UpdateStatus(ctx context.Context, tx *entity.Transaction) error
}

// CashSubmissionRepository flujo de entregas de efectivo.
type CashSubmissionRepository interface {
	Create(ctx context.Context, s *entity.CashSubmission) error
	GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.CashSubmission, error)
	GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.CashSubmission, error)
	GetByIDs(ctx context.Context, tenant entity.Tenant, ids []string) (map[string]*entity.CashSubmission, error)
	Update(ctx context.Context, s *entity.CashSubmission) error
	// BindSources reserva las fuentes para la entrega; ErrAlreadyExists si alguna ya está reservada.
	BindSources(ctx context.Context, tenant entity.Tenant, submissionID string, sources []entity.SourceRef) error
	ReleaseSources(ctx context.Context, tenant entity.Tenant, submissionID string) error
	ListPendingFor(ctx context.Context, tenant entity.Tenant, receiverID string, includePool bool) ([]*entity.CashSubmission, error)
	ListBySubmitter(ctx context.Context, tenant entity.Tenant, submitterID string) ([]*entity.CashSubmission, error)
}

// PointCardRepository tarjetas al portador.
type PointCardRepository interface {
	Create(ctx context.Context, c *entity.PointCard) error
	GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.PointCard, error)
	Update(ctx context.Context, c *entity.PointCard) error
}

// MerchantRepository puestos.
type MerchantRepository interface {
	GetByID(ctx context.Context, tenant entity.Tenant, id string) (*entity.Merchant, error)
	GetForUpdate(ctx context.Context, tenant entity.Tenant, id string) (*entity.Merchant, error)
	UpdateRevenue(ctx context.Context, m *entity.Merchant) error
}

// TenantRepository configuración de tenants (solo lectura en este núcleo) y resumen de efectivo.
type TenantRepository interface {
	GetSettings(ctx context.Context, tenant entity.Tenant) (*entity.TenantSettings, error)
	ListActive(ctx context.Context) ([]entity.Tenant, error)
	GetCashSummaryForUpdate(ctx context.Context, tenant entity.Tenant) (*entity.EventCashSummary, error)
	SaveCashSummary(ctx context.Context, s *entity.EventCashSummary) error
}

// StatsRepository modelos derivados.
type StatsRepository interface {
	UpsertDepartment(ctx context.Context, s *entity.DepartmentStats) error
	UpsertManager(ctx context.Context, s *entity.SellerManagerStats) error
	GetDepartment(ctx context.Context, tenant entity.Tenant, departmentID string) (*entity.DepartmentStats, error)
	GetManager(ctx context.Context, tenant entity.Tenant, managerID string) (*entity.SellerManagerStats, error)
	ListDepartmentIDs(ctx context.Context, tenant entity.Tenant) ([]string, error)
}

// Repos repositorios atados a una misma transacción.
type Repos struct {
	Users        UserRepository
	Transactions TransactionRepository
	Submissions  CashSubmissionRepository
	Cards        PointCardRepository
	Merchants    MerchantRepository
	Tenants      TenantRepository
}

// TxRunner ejecuta fn dentro de una unidad atómica: todo se confirma o nada.
// Ante un conflicto de escritura la implementación puede re-ejecutar fn completa.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(r Repos) error) error
}
