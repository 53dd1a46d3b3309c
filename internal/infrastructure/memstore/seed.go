package memstore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// Seed datos iniciales del almacén en memoria (YAML, JSON o TOML según la extensión).
type Seed struct {
	Tenants []SeedTenant `mapstructure:"tenants"`
}

// SeedTenant un evento con sus usuarios y puestos.
type SeedTenant struct {
	OrganizationID string         `mapstructure:"organization_id"`
	EventID        string         `mapstructure:"event_id"`
	Name           string         `mapstructure:"name"`
	MaxAllocation  string         `mapstructure:"max_allocation"`
	MaxAssistants  int            `mapstructure:"max_assistants"`
	Users          []SeedUser     `mapstructure:"users"`
	Merchants      []SeedMerchant `mapstructure:"merchants"`
}

// SeedUser usuario con PIN en claro; se guarda con bcrypt.
type SeedUser struct {
	ID                 string   `mapstructure:"id"`
	AuthUID            string   `mapstructure:"auth_uid"`
	Name               string   `mapstructure:"name"`
	Phone              string   `mapstructure:"phone"`
	Roles              []string `mapstructure:"roles"`
	DepartmentID       string   `mapstructure:"department_id"`
	ManagedDepartments []string `mapstructure:"managed_departments"`
	MerchantID         string   `mapstructure:"merchant_id"`
	PIN                string   `mapstructure:"pin"`
	Points             string   `mapstructure:"points"`
}

// SeedMerchant puesto y su personal.
type SeedMerchant struct {
	ID           string   `mapstructure:"id"`
	Name         string   `mapstructure:"name"`
	OwnerID      string   `mapstructure:"owner_id"`
	AssistantIDs []string `mapstructure:"assistant_ids"`
}

// LoadSeed lee el archivo de semilla.
func LoadSeed(path string) (*Seed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("leer semilla %s: %w", path, err)
	}
	var seed Seed
	if err := v.Unmarshal(&seed); err != nil {
		return nil, fmt.Errorf("decodificar semilla %s: %w", path, err)
	}
	return &seed, nil
}

// Apply carga la semilla en el almacén. bcryptCost <= 0 usa el costo por defecto.
func (s *Store) Apply(seed *Seed, bcryptCost int, now time.Time) error {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	for _, st := range seed.Tenants {
		tenant := entity.Tenant{OrganizationID: st.OrganizationID, EventID: st.EventID}
		if tenant.IsZero() {
			return fmt.Errorf("semilla: tenant sin organization_id o event_id")
		}
		maxAlloc, err := parseAmount(st.MaxAllocation)
		if err != nil {
			return fmt.Errorf("%s: max_allocation: %w", tenant, err)
		}
		settings := &entity.TenantSettings{
			Tenant:                    tenant,
			Name:                      st.Name,
			Status:                    entity.TenantStatusActive,
			MaxAllocationPerOperation: maxAlloc,
			MaxMerchantAssistants:     st.MaxAssistants,
			UpdatedAt:                 now,
		}
		merchants := make([]*entity.Merchant, 0, len(st.Merchants))
		for _, sm := range st.Merchants {
			m := &entity.Merchant{
				ID:           sm.ID,
				Tenant:       tenant,
				Name:         sm.Name,
				OwnerID:      sm.OwnerID,
				AssistantIDs: sm.AssistantIDs,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := m.CheckAssistants(settings.AssistantCap()); err != nil {
				return fmt.Errorf("%s: %w", tenant, err)
			}
			merchants = append(merchants, m)
		}
		s.PutTenant(settings)
		for _, su := range st.Users {
			u, err := seedUser(tenant, su, bcryptCost, now)
			if err != nil {
				return fmt.Errorf("%s: usuario %s: %w", tenant, su.ID, err)
			}
			s.PutUser(u)
		}
		for _, m := range merchants {
			s.PutMerchant(m)
		}
	}
	return nil
}

func seedUser(tenant entity.Tenant, su SeedUser, cost int, now time.Time) (*entity.User, error) {
	points, err := parseAmount(su.Points)
	if err != nil {
		return nil, fmt.Errorf("points: %w", err)
	}
	u := &entity.User{
		ID:           su.ID,
		Tenant:       tenant,
		AuthUID:      su.AuthUID,
		Phone:        su.Phone,
		Name:         su.Name,
		Roles:        entity.NewRoleSet(su.Roles...),
		DepartmentID: su.DepartmentID,
		Status:       "active",
		MerchantID:   su.MerchantID,
		Manager:      entity.ManagerAccount{ManagedDepartments: su.ManagedDepartments},
		Customer:     entity.PointsAccount{Balance: points, TotalReceived: points},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if su.PIN != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(su.PIN), cost)
		if err != nil {
			return nil, fmt.Errorf("hash de PIN: %w", err)
		}
		u.Security = entity.Security{PINHash: string(hash), PINMethod: entity.PINMethodBcrypt}
	}
	return u, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("monto negativo %s", raw)
	}
	return d, nil
}
