// Package identity implementa la resolución de identidades y el account
// linking por email verificado.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/hooks"
	"github.com/authrim/authrim/internal/observability/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Resolver resuelve un candidato de autenticación a su usuario canónico.
//
// Reglas:
//   - Identidades sin email o con email no verificado NUNCA se mergean:
//     siempre usuario nuevo e independiente.
//   - Con email verificado, si ya existe un primario para (tenant, email),
//     el candidato se crea como identidad secundaria con LinkedTo al primario
//     y el primario es el sujeto de la sesión.
//   - Resoluciones concurrentes del mismo (tenant, email) se serializan
//     in-process con singleflight; entre procesos decide la constraint de
//     unicidad del storage (el perdedor del insert relee al primario).
type Resolver struct {
	users      repository.UserRepository
	dispatcher *hooks.Dispatcher
	sf         singleflight.Group
}

// NewResolver crea un Resolver.
func NewResolver(users repository.UserRepository, dispatcher *hooks.Dispatcher) *Resolver {
	return &Resolver{users: users, dispatcher: dispatcher}
}

// Resolve crea o linkea la identidad candidata y devuelve el usuario canónico
// (el primario cuando hubo linking). Dispara post-user-registration con el
// usuario devuelto, sea cual fuere la rama tomada.
func (r *Resolver) Resolve(ctx context.Context, candidate *repository.User) (*repository.User, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("identity.resolve"),
		logger.TenantID(candidate.TenantID))

	resolved, err := r.resolve(ctx, candidate)
	if err != nil {
		return nil, err
	}

	if r.dispatcher != nil {
		r.dispatcher.Dispatch(ctx, resolved.TenantID, repository.TriggerPostUserRegistration, resolved)
	}
	log.Info("identity resolved", logger.UserID(resolved.ID),
		logger.Bool("linked", resolved.ID != candidate.ID))
	return resolved, nil
}

func (r *Resolver) resolve(ctx context.Context, candidate *repository.User) (*repository.User, error) {
	c := *candidate
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	// Sin email verificado no hay linking posible: usuario nuevo siempre.
	if c.Email == "" || !c.EmailVerified {
		c.LinkedTo = nil
		if err := r.users.Create(ctx, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}

	key := c.TenantID + "|" + strings.ToLower(strings.TrimSpace(c.Email))
	v, err, _ := r.sf.Do(key, func() (any, error) {
		return r.resolveVerified(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return v.(*repository.User), nil
}

// resolveVerified maneja la rama con email verificado: primario o linking.
func (r *Resolver) resolveVerified(ctx context.Context, c repository.User) (*repository.User, error) {
	primary, err := r.users.GetPrimaryByEmail(ctx, c.TenantID, c.Email)
	switch {
	case err == nil:
		return r.link(ctx, c, primary)
	case repository.IsNotFound(err):
		// No hay primario: intentamos serlo.
		c.LinkedTo = nil
		createErr := r.users.Create(ctx, &c)
		if createErr == nil {
			return &c, nil
		}
		if !repository.IsConflict(createErr) {
			return nil, createErr
		}
		// Perdimos la carrera contra otro proceso: el ganador es el primario.
		primary, err = r.users.GetPrimaryByEmail(ctx, c.TenantID, c.Email)
		if err != nil {
			return nil, err
		}
		return r.link(ctx, c, primary)
	default:
		return nil, err
	}
}

// link crea la identidad secundaria apuntando al primario y devuelve el
// primario: el llamador debe usar SU id como sujeto, no la fila nueva.
func (r *Resolver) link(ctx context.Context, c repository.User, primary *repository.User) (*repository.User, error) {
	lt := primary.ID
	c.LinkedTo = &lt
	if err := r.users.Create(ctx, &c); err != nil {
		return nil, err
	}
	return primary, nil
}
