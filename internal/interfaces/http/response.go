package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/internal/application/dto"
	"github.com/jhoicas/feria-api/internal/domain"
)

// Códigos solo de transporte.
const (
	CodeDeadlineExceeded  = "deadline-exceeded"
	CodeResourceExhausted = "resource-exhausted"
)

var statusByCode = map[string]int{
	domain.CodeUnauthenticated:    fiber.StatusUnauthorized,
	domain.CodePermissionDenied:   fiber.StatusForbidden,
	domain.CodeInvalidArgument:    fiber.StatusBadRequest,
	domain.CodeNotFound:           fiber.StatusNotFound,
	domain.CodeFailedPrecondition: fiber.StatusConflict,
	domain.CodeAlreadyExists:      fiber.StatusConflict,
	domain.CodeInternal:           fiber.StatusInternalServerError,
	CodeDeadlineExceeded:          fiber.StatusGatewayTimeout,
	CodeResourceExhausted:         fiber.StatusTooManyRequests,
}

const deadlineMessage = "la operación excedió el tiempo límite; su resultado es desconocido, vuelva a consultar el estado antes de reintentar"

func ok(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(dto.Response{Success: true, Data: data})
}

func fail(c *fiber.Ctx, code, message string) error {
	status, found := statusByCode[code]
	if !found {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: dto.ErrorBody{Code: code, Message: message}})
}

// respondError traduce un error de caso de uso al sobre de error.
func respondError(c *fiber.Ctx, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fail(c, CodeDeadlineExceeded, deadlineMessage)
	}
	return fail(c, domain.CodeOf(err), domain.MessageOf(err))
}

// ErrorHandler manejador de errores de Fiber: rutas inexistentes, cuerpos demasiado grandes, pánicos recuperados.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusNotFound:
			return fail(c, domain.CodeNotFound, "ruta no encontrada")
		case fiber.StatusMethodNotAllowed, fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest:
			return c.Status(fe.Code).JSON(dto.ErrorResponse{Error: dto.ErrorBody{Code: domain.CodeInvalidArgument, Message: fe.Message}})
		}
	}
	return respondError(c, err)
}
