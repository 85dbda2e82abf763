package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCodeUsed indica que el code ya fue redimido (single-use).
	ErrCodeUsed = errors.New("code already used")

	// ErrSessionUsed indica que la sesión de login ya fue consumida.
	ErrSessionUsed = errors.New("session already used")

	// ErrExpired indica que el recurso expiró (now > expires_at).
	ErrExpired = errors.New("expired")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
