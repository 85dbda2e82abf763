package repository

import (
	"context"
	"time"
)

// User representa una identidad dentro de un tenant.
//
// Un usuario "primario" no tiene LinkedTo. Identidades secundarias (mismo
// email verificado, otro provider) apuntan al primario vía LinkedTo; es una
// referencia débil, no ownership. Invariante: a lo sumo un primario con
// email_verified=true por (tenant_id, email).
type User struct {
	ID            string
	TenantID      string
	Email         string
	EmailVerified bool
	Provider      string  // "email", "google-oauth2", ...
	Connection    string  // nombre de la connection que autenticó
	LinkedTo      *string // ID del usuario primario, nil si este es primario

	Name       string
	GivenName  string
	FamilyName string
	Nickname   string
	Picture    string
	Locale     string

	LoginsCount int
	LastLogin   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPrimary reporta si el usuario es una identidad primaria.
func (u *User) IsPrimary() bool {
	return u.LinkedTo == nil
}

// UpdateUserInput contiene los campos actualizables de un usuario.
type UpdateUserInput struct {
	Email         *string
	EmailVerified *bool
	Name          *string
	GivenName     *string
	FamilyName    *string
	Nickname      *string
	Picture       *string
	Locale        *string
	LinkedTo      *string
	LoginsCount   *int
	LastLogin     *time.Time
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// Create crea un usuario. El llamador fija ID y TenantID.
	// Retorna ErrConflict si ya existe un primario verificado con el mismo
	// (tenant_id, email) y el nuevo usuario también sería primario verificado.
	// Esta es la constraint que hace seguro el account linking concurrente.
	Create(ctx context.Context, user *User) error

	// Get busca un usuario por ID dentro de un tenant.
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, tenantID, userID string) (*User, error)

	// GetPrimaryByEmail busca el usuario primario verificado para un email.
	// Retorna ErrNotFound si no existe.
	GetPrimaryByEmail(ctx context.Context, tenantID, email string) (*User, error)

	// ListByEmail retorna todas las identidades (primaria y linkeadas) con ese email.
	ListByEmail(ctx context.Context, tenantID, email string) ([]User, error)

	// Update actualiza campos de un usuario.
	Update(ctx context.Context, tenantID, userID string, input UpdateUserInput) error

	// Remove elimina un usuario por ID.
	Remove(ctx context.Context, tenantID, userID string) error
}
