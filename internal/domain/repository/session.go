package repository

import (
	"context"
	"time"
)

// AuthParams son los parámetros validados de un authorization request.
// Inmutables una vez creada la sesión.
type AuthParams struct {
	ResponseType        string
	ResponseMode        string // "query" | "fragment", vacío = derivado del response_type
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Session representa un authorization request en vuelo (Universal Login Session).
// Se consume una única vez cuando el engine emite un code o tokens.
type Session struct {
	ID         string
	TenantID   string
	ClientID   string
	AuthParams AuthParams
	CreatedAt  time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
}

// Expired reporta si la sesión ya venció.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionRepository define operaciones sobre sesiones de login.
type SessionRepository interface {
	// Create persiste una nueva sesión.
	Create(ctx context.Context, session *Session) error

	// Get obtiene una sesión por ID. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*Session, error)

	// Use marca la sesión como consumida (set used_at). Atómico: bajo
	// llamadas concurrentes exactamente una gana; el resto recibe
	// ErrSessionUsed. Retorna ErrNotFound si no existe.
	Use(ctx context.Context, id string, at time.Time) error

	// Remove elimina una sesión.
	Remove(ctx context.Context, id string) error
}
