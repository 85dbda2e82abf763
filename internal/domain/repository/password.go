package repository

import (
	"context"
	"time"
)

// Password es el registro de credencial de un usuario: un solo hash activo
// por usuario, update reemplaza.
type Password struct {
	TenantID  string
	UserID    string
	Hash      string // PHC string argon2id
	UpdatedAt time.Time
}

// PasswordRepository define operaciones sobre passwords.
type PasswordRepository interface {
	// Create registra el hash inicial de un usuario.
	// Retorna ErrConflict si el usuario ya tiene password.
	Create(ctx context.Context, tenantID, userID, hash string) error

	// Update reemplaza el hash del usuario. Retorna ErrNotFound si no hay registro.
	Update(ctx context.Context, tenantID, userID, hash string) error

	// Validate compara el password en claro contra el hash almacenado.
	// (false, nil) si no coincide; ErrNotFound si el usuario no tiene password.
	Validate(ctx context.Context, tenantID, userID, plain string) (bool, error)
}
