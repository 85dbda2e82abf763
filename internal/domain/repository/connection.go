package repository

import (
	"context"
	"time"
)

// Connection representa un proveedor federado/social configurado por tenant.
type Connection struct {
	ID                    string
	TenantID              string
	Name                  string // "google-oauth2", "facebook", etc.
	ClientID              string
	ClientSecret          string
	AuthorizationEndpoint string
	TokenEndpoint         string
	ResponseType          string
	ResponseMode          string
	Scope                 string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ConnectionRepository define operaciones sobre connections.
type ConnectionRepository interface {
	// Create registra una connection bajo un tenant.
	// Retorna ErrConflict si (tenant_id, name) ya existe.
	Create(ctx context.Context, tenantID string, conn *Connection) error

	// List retorna las connections de un tenant.
	List(ctx context.Context, tenantID string) ([]Connection, error)

	// GetByName resuelve una connection por nombre dentro del tenant.
	// Retorna ErrNotFound si no existe.
	GetByName(ctx context.Context, tenantID, name string) (*Connection, error)
}
