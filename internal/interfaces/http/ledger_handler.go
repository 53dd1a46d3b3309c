package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/internal/application/dto"
	"github.com/jhoicas/feria-api/internal/application/ledger"
	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// LedgerHandler transferencias de puntos y pagos a puestos.
type LedgerHandler struct {
	engine *ledger.Engine
}

func NewLedgerHandler(engine *ledger.Engine) *LedgerHandler {
	return &LedgerHandler{engine: engine}
}

type transferFunc func(ctx context.Context, caller ports.Caller, in ledger.TransferInput) (*entity.Transaction, error)

func (h *LedgerHandler) transfer(c *fiber.Ctx, op transferFunc) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.TransferRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	tx, err := op(c.UserContext(), caller, ledger.TransferInput{RecipientID: in.RecipientID, Amount: in.Amount, PIN: in.PIN})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, dto.NewTransactionResponse(tx))
}

// Allocate godoc
// @Summary      Asignar puntos a un vendedor
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "Vendedor, monto y PIN"
// @Success      201   {object}  dto.Response
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orgs/{orgId}/events/{eventId}/allocations [post]
func (h *LedgerHandler) Allocate(c *fiber.Ctx) error {
	return h.transfer(c, h.engine.Allocate)
}

// DirectSale godoc
// @Summary      Venta directa de puntos a un cliente
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "Cliente, monto y PIN"
// @Success      201   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/direct-sales [post]
func (h *LedgerHandler) DirectSale(c *fiber.Ctx) error {
	return h.transfer(c, h.engine.DirectSale)
}

// SellerSale godoc
// @Summary      Venta de puntos de un vendedor a un cliente
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "Cliente, monto y PIN"
// @Success      201   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/seller-sales [post]
func (h *LedgerHandler) SellerSale(c *fiber.Ctx) error {
	return h.transfer(c, h.engine.SellerSale)
}

// Payment godoc
// @Summary      Pago de un cliente a un puesto (queda pendiente)
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        body  body  dto.PaymentRequest  true  "Puesto, monto y PIN"
// @Success      201   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/payments [post]
func (h *LedgerHandler) Payment(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.PaymentRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	tx, err := h.engine.Payment(c.UserContext(), caller, ledger.PaymentInput{MerchantID: in.MerchantID, Amount: in.Amount, PIN: in.PIN})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, dto.NewTransactionResponse(tx))
}

type paymentAction func(ctx context.Context, caller ports.Caller, txID, pin string) (*entity.Transaction, error)

func (h *LedgerHandler) paymentTransition(c *fiber.Ctx, action paymentAction) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.PINRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	tx, err := action(c.UserContext(), caller, c.Params("id"), in.PIN)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewTransactionResponse(tx))
}

// ConfirmPayment godoc
// @Summary      El puesto confirma un pago pendiente
// @Tags         payments
// @Param        id    path  string          true  "ID del movimiento"
// @Param        body  body  dto.PINRequest  true  "PIN"
// @Success      200   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/payments/{id}/confirm [post]
func (h *LedgerHandler) ConfirmPayment(c *fiber.Ctx) error {
	return h.paymentTransition(c, h.engine.ConfirmPayment)
}

// RefundPayment godoc
// @Summary      El dueño del puesto reembolsa un pago completado
// @Tags         payments
// @Param        id    path  string          true  "ID del movimiento"
// @Param        body  body  dto.PINRequest  true  "PIN"
// @Success      200   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/payments/{id}/refund [post]
func (h *LedgerHandler) RefundPayment(c *fiber.Ctx) error {
	return h.paymentTransition(c, h.engine.RefundPayment)
}

// CancelPayment godoc
// @Summary      Cancelar un pago pendiente
// @Tags         payments
// @Param        id    path  string          true  "ID del movimiento"
// @Param        body  body  dto.PINRequest  true  "PIN"
// @Success      200   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/payments/{id}/cancel [post]
func (h *LedgerHandler) CancelPayment(c *fiber.Ctx) error {
	return h.paymentTransition(c, h.engine.CancelPayment)
}
