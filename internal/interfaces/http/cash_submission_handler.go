package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/internal/application/cashsubmission"
	"github.com/jhoicas/feria-api/internal/application/dto"
	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
)

// CashSubmissionHandler flujo de entregas de efectivo.
type CashSubmissionHandler struct {
	svc *cashsubmission.Service
}

func NewCashSubmissionHandler(svc *cashsubmission.Service) *CashSubmissionHandler {
	return &CashSubmissionHandler{svc: svc}
}

// Create godoc
// @Summary      Registrar entrega de efectivo
// @Tags         cash-submissions
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSubmissionRequest  true  "Monto, receptor, fuentes y PIN"
// @Success      201   {object}  dto.Response
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orgs/{orgId}/events/{eventId}/cash-submissions [post]
func (h *CashSubmissionHandler) Create(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.CreateSubmissionRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	sub, err := h.svc.Create(c.UserContext(), caller, cashsubmission.CreateInput{
		Amount:     in.Amount,
		ReceiverID: in.ReceiverID,
		Sources:    in.SourceRefs(),
		Note:       in.Note,
		PIN:        in.PIN,
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, dto.NewSubmissionResponse(sub))
}

// Confirm godoc
// @Summary      Confirmar recepción del efectivo
// @Tags         cash-submissions
// @Param        id    path  string          true  "ID de la entrega"
// @Param        body  body  dto.PINRequest  true  "PIN"
// @Success      200   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/cash-submissions/{id}/confirm [post]
func (h *CashSubmissionHandler) Confirm(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.PINRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	sub, err := h.svc.Confirm(c.UserContext(), caller, c.Params("id"), in.PIN)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewSubmissionResponse(sub))
}

type closeFunc func(ctx context.Context, caller ports.Caller, submissionID, reason, pin string) (*entity.CashSubmission, error)

func (h *CashSubmissionHandler) close(c *fiber.Ctx, op closeFunc) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	var in dto.ResolveSubmissionRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	sub, err := op(c.UserContext(), caller, c.Params("id"), in.Reason, in.PIN)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewSubmissionResponse(sub))
}

// Dispute godoc
// @Summary      Disputar una entrega
// @Tags         cash-submissions
// @Param        id    path  string                        true  "ID de la entrega"
// @Param        body  body  dto.ResolveSubmissionRequest  true  "Motivo y PIN"
// @Success      200   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/cash-submissions/{id}/dispute [post]
func (h *CashSubmissionHandler) Dispute(c *fiber.Ctx) error {
	return h.close(c, h.svc.Dispute)
}

// Reject godoc
// @Summary      Rechazar una entrega
// @Tags         cash-submissions
// @Param        id    path  string                        true  "ID de la entrega"
// @Param        body  body  dto.ResolveSubmissionRequest  true  "Motivo y PIN"
// @Success      200   {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/cash-submissions/{id}/reject [post]
func (h *CashSubmissionHandler) Reject(c *fiber.Ctx) error {
	return h.close(c, h.svc.Reject)
}

// Pending godoc
// @Summary      Entregas pendientes para el llamador
// @Tags         cash-submissions
// @Success      200  {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/cash-submissions/pending [get]
func (h *CashSubmissionHandler) Pending(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	list, err := h.svc.ListPending(c.UserContext(), caller)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewSubmissionList(list))
}

// Mine godoc
// @Summary      Entregas hechas por el llamador
// @Tags         cash-submissions
// @Success      200  {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/cash-submissions/mine [get]
func (h *CashSubmissionHandler) Mine(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	list, err := h.svc.ListMine(c.UserContext(), caller)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewSubmissionList(list))
}

// GetByID godoc
// @Summary      Obtener una entrega visible para el llamador
// @Tags         cash-submissions
// @Param        id   path  string  true  "ID de la entrega"
// @Success      200  {object}  dto.Response
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orgs/{orgId}/events/{eventId}/cash-submissions/{id} [get]
func (h *CashSubmissionHandler) GetByID(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	sub, err := h.svc.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewSubmissionResponse(sub))
}
