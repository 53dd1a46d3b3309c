package domain

import (
	"errors"
	"fmt"
)

// Tipos de error de dominio (sin dependencias externas).
// Cada tipo corresponde a un código de la taxonomía expuesta al cliente.
var (
	ErrUnauthenticated    = errors.New("credencial ausente o inválida")
	ErrPermissionDenied   = errors.New("acceso denegado")
	ErrInvalidArgument    = errors.New("entrada inválida")
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrFailedPrecondition = errors.New("el estado actual no permite la operación")
	ErrAlreadyExists      = errors.New("recurso duplicado")
	ErrInternal           = errors.New("error interno")
)

// Códigos de la taxonomía.
const (
	CodeUnauthenticated    = "unauthenticated"
	CodePermissionDenied   = "permission-denied"
	CodeInvalidArgument    = "invalid-argument"
	CodeNotFound           = "not-found"
	CodeFailedPrecondition = "failed-precondition"
	CodeAlreadyExists      = "already-exists"
	CodeInternal           = "internal"
)

// Error es un error de dominio con un tipo (kind) y un mensaje que identifica
// la validación concreta que falló (ej. intentos de PIN restantes).
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

// Unwrap permite errors.Is(err, domain.ErrNotFound).
func (e *Error) Unwrap() error { return e.Kind }

// Errorf construye un error de dominio del tipo indicado con mensaje formateado.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// CodeOf devuelve el código de taxonomía de un error. Los errores que no son de dominio son "internal".
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrFailedPrecondition):
		return CodeFailedPrecondition
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	default:
		return CodeInternal
	}
}

// MessageOf devuelve el mensaje para el cliente. Los errores internos no exponen detalles.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Error()
	}
	if CodeOf(err) == CodeInternal {
		return ErrInternal.Error()
	}
	return err.Error()
}
