package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/feria-api/internal/domain/entity"
)

type DepartmentStatsResponse struct {
	DepartmentID           string          `json:"department_id"`
	SellerCount            int             `json:"seller_count"`
	TotalAvailablePoints   decimal.Decimal `json:"total_available_points"`
	TotalPendingCollection decimal.Decimal `json:"total_pending_collection"`
	TotalSubmitted         decimal.Decimal `json:"total_submitted"`
	TotalSold              decimal.Decimal `json:"total_sold"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func NewDepartmentStatsResponse(s *entity.DepartmentStats) *DepartmentStatsResponse {
	return &DepartmentStatsResponse{
		DepartmentID:           s.DepartmentID,
		SellerCount:            s.SellerCount,
		TotalAvailablePoints:   s.TotalAvailablePoints,
		TotalPendingCollection: s.TotalPendingCollection,
		TotalSubmitted:         s.TotalSubmitted,
		TotalSold:              s.TotalSold,
		UpdatedAt:              s.UpdatedAt,
	}
}

type ManagerStatsResponse struct {
	ManagerID                string          `json:"manager_id"`
	DepartmentCount          int             `json:"department_count"`
	SellerCount              int             `json:"seller_count"`
	PointsAllocated          decimal.Decimal `json:"points_allocated"`
	CashOnHand               decimal.Decimal `json:"cash_on_hand"`
	CashReceived             decimal.Decimal `json:"cash_received"`
	SellersAvailablePoints   decimal.Decimal `json:"sellers_available_points"`
	SellersPendingCollection decimal.Decimal `json:"sellers_pending_collection"`
	SellersSubmitted         decimal.Decimal `json:"sellers_submitted"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

func NewManagerStatsResponse(s *entity.SellerManagerStats) *ManagerStatsResponse {
	return &ManagerStatsResponse{
		ManagerID:                s.ManagerID,
		DepartmentCount:          s.DepartmentCount,
		SellerCount:              s.SellerCount,
		PointsAllocated:          s.PointsAllocated,
		CashOnHand:               s.CashOnHand,
		CashReceived:             s.CashReceived,
		SellersAvailablePoints:   s.SellersAvailablePoints,
		SellersPendingCollection: s.SellersPendingCollection,
		SellersSubmitted:         s.SellersSubmitted,
		UpdatedAt:                s.UpdatedAt,
	}
}
