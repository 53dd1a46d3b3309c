package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// TransferRequest asignación, venta directa o venta de vendedor.
type TransferRequest struct {
	RecipientID string          `json:"recipient_id" validate:"required,max=128"`
	Amount      decimal.Decimal `json:"amount"`
	PIN         string          `json:"pin" validate:"required,numeric,min=4,max=6"`
}

// PaymentRequest pago de un cliente a un puesto.
type PaymentRequest struct {
	MerchantID string          `json:"merchant_id" validate:"required,max=128"`
	Amount     decimal.Decimal `json:"amount"`
	PIN        string          `json:"pin" validate:"required,numeric,min=4,max=6"`
}

// PINRequest cuerpo de las operaciones que solo requieren el PIN.
type PINRequest struct {
	PIN string `json:"pin" validate:"required,numeric,min=4,max=6"`
}

// SetPINRequest alta o cambio de PIN. CurrentPIN es obligatorio solo si ya existe uno.
type SetPINRequest struct {
	CurrentPIN string `json:"current_pin" validate:"omitempty,numeric,min=4,max=6"`
	NewPIN     string `json:"new_pin" validate:"required,numeric,min=4,max=6"`
}

// TransactionResponse movimiento del ledger.
type TransactionResponse struct {
	ID          string                `json:"id"`
	Type        string                `json:"type"`
	FromUserID  string                `json:"from_user_id,omitempty"`
	ToUserID    string                `json:"to_user_id,omitempty"`
	MerchantID  string                `json:"merchant_id,omitempty"`
	CardID      string                `json:"card_id,omitempty"`
	Amount      decimal.Decimal       `json:"amount"`
	Status      string                `json:"status"`
	CollectedBy string                `json:"collected_by,omitempty"`
	History     []entity.StatusChange `json:"history"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func NewTransactionResponse(t *entity.Transaction) *TransactionResponse {
	if t == nil {
		return nil
	}
	return &TransactionResponse{
		ID:          t.ID,
		Type:        t.Type,
		FromUserID:  t.FromUserID,
		ToUserID:    t.ToUserID,
		MerchantID:  t.MerchantID,
		CardID:      t.CardID,
		Amount:      t.Amount,
		Status:      t.Status,
		CollectedBy: t.CollectedBy,
		History:     t.History,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// MeResponse el llamador resuelto con sus saldos. Nunca incluye el bloque de seguridad.
type MeResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Phone        string   `json:"phone"`
	Roles        []string `json:"roles"`
	DepartmentID string   `json:"department_id,omitempty"`
	MerchantID   string   `json:"merchant_id,omitempty"`
	HasPIN       bool     `json:"has_pin"`
	PINLocked    bool     `json:"pin_locked"`

	Seller    *SellerBalances    `json:"seller,omitempty"`
	Manager   *ManagerBalances   `json:"manager,omitempty"`
	PointSale *PointSaleBalances `json:"point_sale,omitempty"`
	Cash      *CashBalances      `json:"cash,omitempty"`
	Points    *PointsBalances    `json:"points,omitempty"`
}

type SellerBalances struct {
	AvailablePoints   decimal.Decimal `json:"available_points"`
	PendingCollection decimal.Decimal `json:"pending_collection"`
	TotalSubmitted    decimal.Decimal `json:"total_submitted"`
	TotalSold         decimal.Decimal `json:"total_sold"`
}

type ManagerBalances struct {
	ManagedDepartments []string        `json:"managed_departments"`
	PointsAllocated    decimal.Decimal `json:"points_allocated"`
}

type PointSaleBalances struct {
	TodayIssued decimal.Decimal `json:"today_issued"`
	TodayDate   string          `json:"today_date"`
	TotalIssued decimal.Decimal `json:"total_issued"`
	TotalCards  int             `json:"total_cards"`
}

type CashBalances struct {
	CashOnHand     decimal.Decimal `json:"cash_on_hand"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	TotalReceived  decimal.Decimal `json:"total_received"`
	TotalSubmitted decimal.Decimal `json:"total_submitted"`
}

type PointsBalances struct {
	Balance       decimal.Decimal `json:"balance"`
	TotalReceived decimal.Decimal `json:"total_received"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
}

// NewMeResponse expone solo los sub-registros de los roles que el usuario tiene.
func NewMeResponse(u *entity.User, now time.Time) *MeResponse {
	out := &MeResponse{
		ID:           u.ID,
		Name:         u.Name,
		Phone:        u.Phone,
		Roles:        u.Roles.Strings(),
		DepartmentID: u.DepartmentID,
		MerchantID:   u.MerchantID,
		HasPIN:       u.Security.HasPIN(),
		PINLocked:    u.Security.LockedAt(now),
	}
	if u.Roles.Has(entity.RoleSeller) {
		out.Seller = &SellerBalances{
			AvailablePoints:   u.Seller.AvailablePoints,
			PendingCollection: u.Seller.PendingCollection,
			TotalSubmitted:    u.Seller.TotalSubmitted,
			TotalSold:         u.Seller.TotalSold,
		}
	}
	if u.Roles.Has(entity.RoleSellerManager) {
		out.Manager = &ManagerBalances{
			ManagedDepartments: u.Manager.ManagedDepartments,
			PointsAllocated:    u.Manager.PointsAllocated,
		}
	}
	if u.Roles.Has(entity.RolePointSeller) {
		out.PointSale = &PointSaleBalances{
			TodayIssued: u.PointSale.TodayIssued,
			TodayDate:   u.PointSale.TodayDate,
			TotalIssued: u.PointSale.TotalIssued,
			TotalCards:  u.PointSale.TotalCards,
		}
	}
	if u.Roles.Has(entity.RoleSellerManager) || u.Roles.Has(entity.RolePointSeller) ||
		u.Roles.Has(entity.RoleCashier) || u.Roles.Has(entity.RoleFinanceManager) {
		out.Cash = &CashBalances{
			CashOnHand:     u.Cash.CashOnHand,
			TotalCollected: u.Cash.TotalCollected,
			TotalReceived:  u.Cash.TotalReceived,
			TotalSubmitted: u.Cash.TotalSubmitted,
		}
	}
	if u.Roles.Has(entity.RoleCustomer) {
		out.Points = &PointsBalances{
			Balance:       u.Customer.Balance,
			TotalReceived: u.Customer.TotalReceived,
			TotalSpent:    u.Customer.TotalSpent,
		}
	}
	return out
}
