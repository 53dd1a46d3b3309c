package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/internal/application/dto"
	"github.com/jhoicas/feria-api/internal/application/identity"
	"github.com/jhoicas/feria-api/internal/application/pin"
	"github.com/jhoicas/feria-api/internal/domain"
)

// MeHandler perfil del llamador y gestión de su PIN.
type MeHandler struct {
	resolver *identity.Resolver
	guard    *pin.Guard
}

func NewMeHandler(resolver *identity.Resolver, guard *pin.Guard) *MeHandler {
	return &MeHandler{resolver: resolver, guard: guard}
}

// Me godoc
// @Summary      Llamador resuelto con sus saldos
// @Tags         me
// @Produce      json
// @Security     BearerAuth
// @Param        orgId    path  string  true  "Organización"
// @Param        eventId  path  string  true  "Evento"
// @Success      200  {object}  dto.Response
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/orgs/{orgId}/events/{eventId}/me [get]
func (h *MeHandler) Me(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	user, err := h.resolver.Profile(c.UserContext(), caller)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewMeResponse(user, time.Now()))
}

// VerifyPIN godoc
// @Summary      Verificar PIN
// @Tags         pin
// @Accept       json
// @Produce      json
// @Param        body  body  dto.PINRequest  true  "PIN"
// @Success      200   {object}  dto.Response
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orgs/{orgId}/events/{eventId}/pin/verify [post]
func (h *MeHandler) VerifyPIN(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.PINRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	if err := h.guard.Verify(c.UserContext(), caller, in.PIN); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"verified": true})
}

// SetPIN godoc
// @Summary      Definir o cambiar el PIN
// @Tags         pin
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SetPINRequest  true  "PIN actual y nuevo"
// @Success      200   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/pin [put]
func (h *MeHandler) SetPIN(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.SetPINRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	if err := h.guard.SetPIN(c.UserContext(), caller, in.CurrentPIN, in.NewPIN); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"updated": true})
}
