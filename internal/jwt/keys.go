package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
)

// GenerateEd25519 genera un par de claves Ed25519.
func GenerateEd25519() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// NewSigningKey genera una clave nueva lista para entrar al rotation set.
// El KID lleva timestamp + sufijo aleatorio para que sea legible y único.
func NewSigningKey(now time.Time) (*repository.SigningKey, error) {
	pub, priv, err := GenerateEd25519()
	if err != nil {
		return nil, err
	}
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return nil, err
	}
	return &repository.SigningKey{
		KID:        now.UTC().Format("20060102T150405Z") + "-" + base64.RawURLEncoding.EncodeToString(suffix),
		PrivateKey: priv,
		PublicKey:  pub,
		CreatedAt:  now.UTC(),
	}, nil
}
