package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/internal/application/dto"
	"github.com/jhoicas/feria-api/internal/application/stats"
	"github.com/jhoicas/feria-api/internal/domain"
)

// StatsHandler estadísticas derivadas.
type StatsHandler struct {
	agg *stats.Aggregator
}

func NewStatsHandler(agg *stats.Aggregator) *StatsHandler {
	return &StatsHandler{agg: agg}
}

// Department godoc
// @Summary      Estadísticas de un departamento
// @Tags         stats
// @Param        id   path  string  true  "ID del departamento"
// @Success      200  {object}  dto.Response
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/orgs/{orgId}/events/{eventId}/stats/departments/{id} [get]
func (h *StatsHandler) Department(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	s, err := h.agg.Department(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewDepartmentStatsResponse(s))
}

// Manager godoc
// @Summary      Estadísticas de un encargado de vendedores
// @Tags         stats
// @Param        id   path  string  true  "ID del encargado"
// @Success      200  {object}  dto.Response
// @Router       /api/orgs/{orgId}/events/{eventId}/stats/managers/{id} [get]
func (h *StatsHandler) Manager(c *fiber.Ctx) error {
	caller, found := GetCaller(c)
	if !found {
		return fail(c, domain.CodeUnauthenticated, "llamador no resuelto")
	}
	s, err := h.agg.Manager(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, dto.NewManagerStatsResponse(s))
}
