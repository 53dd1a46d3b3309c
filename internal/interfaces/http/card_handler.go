package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/internal/application/dto"
	"github.com/jhoicas/feria-api/internal/application/ledger"
	"github.com/jhoicas/feria-api/internal/domain"
)

// CardHandler tarjetas de puntos al portador.
type CardHandler struct {
	engine *ledger.Engine
}

func NewCardHandler(engine *ledger.Engine) *CardHandler {
	return &CardHandler{engine: engine}
}

// Issue godoc
// @Summary      Emitir tarjeta de puntos
// @Tags         point-cards
// @Accept       json
// @Produce      json
// @Param        body  body  dto.IssueCardRequest  true  "Monto, vigencia y PIN"
// @Success      201   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/point-cards [post]
func (h *CardHandler) Issue(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.IssueCardRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	out, err := h.engine.IssuePointCard(c.UserContext(), caller, ledger.IssueCardInput{Amount: in.Amount, ValidDays: in.ValidDays, PIN: in.PIN})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, dto.CardIssueResponse{
		Card:        dto.NewCardResponse(out.Card),
		Transaction: dto.NewTransactionResponse(out.Transaction),
	})
}

// Redeem godoc
// @Summary      Canjear tarjeta en un puesto
// @Tags         point-cards
// @Param        id    path  string                 true  "ID de la tarjeta"
// @Param        body  body  dto.RedeemCardRequest  true  "Puesto, monto y PIN"
// @Success      200   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/point-cards/{id}/redeem [post]
func (h *CardHandler) Redeem(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.RedeemCardRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	tx, err := h.engine.RedeemPointCard(c.UserContext(), caller, ledger.RedeemCardInput{
		CardID:     c.Params("id"),
		MerchantID: in.MerchantID,
		Amount:     in.Amount,
		PIN:        in.PIN,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewTransactionResponse(tx))
}

// Destroy godoc
// @Summary      Destruir tarjeta
// @Tags         point-cards
// @Param        id    path  string          true  "ID de la tarjeta"
// @Param        body  body  dto.PINRequest  true  "PIN"
// @Success      200   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/point-cards/{id}/destroy [post]
func (h *CardHandler) Destroy(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.PINRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	card, err := h.engine.DestroyPointCard(c.UserContext(), caller, c.Params("id"), in.PIN)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewCardResponse(card))
}
