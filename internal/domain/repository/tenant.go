package repository

import (
	"context"
	"time"
)

// Tenant representa el límite de aislamiento de todos los datos de identidad.
type Tenant struct {
	ID          string
	Name        string
	Audience    string // "aud" por defecto de los tokens emitidos
	SenderEmail string
	SenderName  string
	Language    string // Idioma por defecto ("es", "en"), vacío = "en"
	LogoURL     string
	PrimaryColor string
	SupportURL  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpdateTenantInput contiene los campos actualizables de un tenant. El ID es inmutable.
type UpdateTenantInput struct {
	Name         *string
	Audience     *string
	SenderEmail  *string
	SenderName   *string
	Language     *string
	LogoURL      *string
	PrimaryColor *string
	SupportURL   *string
}

// TenantRepository define operaciones sobre tenants.
type TenantRepository interface {
	// Create crea un nuevo tenant.
	// Retorna ErrConflict si el ID ya existe.
	Create(ctx context.Context, tenant *Tenant) error

	// Get busca un tenant por ID. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*Tenant, error)

	// List retorna todos los tenants.
	List(ctx context.Context) ([]Tenant, error)

	// Update actualiza campos de un tenant existente.
	Update(ctx context.Context, id string, input UpdateTenantInput) error

	// Remove elimina un tenant.
	Remove(ctx context.Context, id string) error
}
