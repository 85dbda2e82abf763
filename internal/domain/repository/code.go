package repository

import (
	"context"
	"time"
)

// CodeType indica el propósito de un one-time code.
type CodeType string

const (
	CodeTypeAuthorization CodeType = "authorization"
	CodeTypeValidation    CodeType = "validation"
	CodeTypePasswordReset CodeType = "password_reset"
)

// Code representa un one-time code: authorization code, código de verificación
// de email u OTP de password reset. Single-use: se redime a lo sumo una vez.
type Code struct {
	ID       string
	TenantID string
	Email    string
	Code     string // valor presentado por el usuario/cliente
	Type     CodeType

	// UserID y SessionID atan un authorization code al sujeto autenticado
	// y a la sesión de login que lo originó (para validar client/redirect_uri
	// en el exchange). Vacíos para codes de email.
	UserID    string
	SessionID string

	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Expired reporta si el code ya venció.
func (c *Code) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CodeRepository define operaciones sobre one-time codes.
//
// La redención (lookup + comparación + marca de uso) la orquesta el Code
// Service; el repositorio solo debe garantizar que Use sea atómico.
type CodeRepository interface {
	// Create persiste un nuevo code.
	Create(ctx context.Context, code *Code) error

	// List retorna los codes de (tenant_id, email, type), usados o no.
	List(ctx context.Context, tenantID, email string, typ CodeType) ([]Code, error)

	// FindByValue busca un code por su valor dentro de un tenant. Usado para
	// authorization codes, que se redimen por portador sin conocer el email.
	// Retorna ErrNotFound si no existe.
	FindByValue(ctx context.Context, tenantID, value string, typ CodeType) (*Code, error)

	// Use marca el code como redimido (set used_at). Atómico: bajo redención
	// concurrente del mismo code exactamente una llamada gana; el resto
	// recibe ErrCodeUsed. Retorna ErrNotFound si no existe.
	Use(ctx context.Context, tenantID, codeID string, at time.Time) error
}
