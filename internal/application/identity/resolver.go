// Package identity resuelve la identidad verificada del llamador (token + tenant declarado)
// al usuario interno y su conjunto de roles.
package identity

import (
	"context"
	"fmt"

	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/internal/domain/repository"
	"github.com/jhoicas/feria-api/pkg/jwt"
)

// Resolver mapea un bearer token verificado a (tenant, userID, roles).
type Resolver struct {
	users     repository.UserRepository
	jwtSecret string
}

// NewResolver construye el resolvedor.
func NewResolver(users repository.UserRepository, jwtSecret string) *Resolver {
	return &Resolver{users: users, jwtSecret: jwtSecret}
}

// VerifyToken valida el token y devuelve la identidad externa (auth UID).
func (r *Resolver) VerifyToken(token string) (string, error) {
	if token == "" {
		return "", domain.Errorf(domain.ErrUnauthenticated, "token requerido")
	}
	claims, err := jwt.Parse(r.jwtSecret, token)
	if err != nil {
		return "", domain.Errorf(domain.ErrUnauthenticated, "token inválido o expirado")
	}
	return claims.Subject, nil
}

// Resolve busca al usuario por su identidad externa dentro del tenant declarado.
// La identidad externa y la clave interna del usuario son distintas, por eso se usa el índice secundario.
func (r *Resolver) Resolve(ctx context.Context, tenant entity.Tenant, authUID string) (ports.Caller, error) {
	if tenant.IsZero() {
		return ports.Caller{}, domain.Errorf(domain.ErrInvalidArgument, "organización y evento son requeridos")
	}
	if authUID == "" {
		return ports.Caller{}, domain.Errorf(domain.ErrUnauthenticated, "identidad del llamador vacía")
	}
	user, err := r.users.GetByAuthUID(ctx, tenant, authUID)
	if err != nil {
		return ports.Caller{}, fmt.Errorf("resolver usuario: %w", err)
	}
	if user == nil {
		return ports.Caller{}, domain.Errorf(domain.ErrNotFound, "el usuario no pertenece al evento %s", tenant)
	}
	if user.Status != "" && user.Status != "active" {
		return ports.Caller{}, domain.Errorf(domain.ErrPermissionDenied, "cuenta inactiva")
	}
	return ports.Caller{
		Tenant:  tenant,
		UserID:  user.ID,
		AuthUID: authUID,
		Roles:   user.Roles,
	}, nil
}

// ResolveToken combina VerifyToken y Resolve.
func (r *Resolver) ResolveToken(ctx context.Context, tenant entity.Tenant, token string) (ports.Caller, error) {
	uid, err := r.VerifyToken(token)
	if err != nil {
		return ports.Caller{}, err
	}
	return r.Resolve(ctx, tenant, uid)
}

// Profile devuelve el registro completo del llamador (saldos incluidos).
func (r *Resolver) Profile(ctx context.Context, caller ports.Caller) (*entity.User, error) {
	user, err := r.users.GetByID(ctx, caller.Tenant, caller.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "usuario %s no encontrado", caller.UserID)
	}
	return user, nil
}
