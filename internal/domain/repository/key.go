package repository

import (
	"context"
	"time"
)

// SigningKey representa un certificado de firma Ed25519 del rotation set.
// Las claves nunca se borran físicamente, solo se revocan: tokens firmados
// antes de una rotación siguen siendo verificables contra claves viejas
// mientras no estén revocadas.
type SigningKey struct {
	KID        string
	PrivateKey []byte // ed25519.PrivateKey; vacío en vistas públicas
	PublicKey  []byte // ed25519.PublicKey
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// Revoked reporta si la clave está revocada a un instante dado.
func (k *SigningKey) Revoked(now time.Time) bool {
	return k.RevokedAt != nil && !k.RevokedAt.After(now)
}

// KeyRepository define la lectura del rotation set de claves de firma.
//
// La escritura depende de la generación del adapter: los nuevos implementan
// KeyWriter (create/revoke), los viejos KeyBulkWriter (reemplazo en bloque).
// El Key Manager tolera cualquiera de las dos formas vía type assertion.
type KeyRepository interface {
	// List retorna todas las claves, revocadas incluidas, ordenadas por
	// created_at ascendente.
	List(ctx context.Context) ([]SigningKey, error)
}

// KeyWriter es la forma de escritura granular.
type KeyWriter interface {
	// Create agrega una clave al rotation set.
	// Retorna ErrConflict si el KID ya existe.
	Create(ctx context.Context, key *SigningKey) error

	// Revoke marca una clave como revocada. Retorna ErrNotFound si no existe.
	Revoke(ctx context.Context, kid string, at time.Time) error
}

// KeyBulkWriter es la forma de escritura en bloque: reemplaza el set completo.
type KeyBulkWriter interface {
	Upsert(ctx context.Context, keys []SigningKey) error
}
