package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/feria-api/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// parseBody decodifica el JSON y aplica las reglas `validate` del DTO.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return domain.Errorf(domain.ErrInvalidArgument, "cuerpo inválido: %v", err)
	}
	if err := validate.Struct(out); err != nil {
		return domain.Errorf(domain.ErrInvalidArgument, "%s", describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Namespace())
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return "validación fallida: " + strings.Join(parts, ", ")
}
