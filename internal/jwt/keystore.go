package jwt

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
)

var (
	// ErrNoActiveKey indica que no existe ninguna clave no-revocada: error de
	// configuración fatal, el engine no puede firmar.
	ErrNoActiveKey = errors.New("no_active_signing_key")

	// ErrKIDNotFound indica que el kid del token no corresponde a ninguna
	// clave verificable.
	ErrKIDNotFound = errors.New("kid_not_found")

	// ErrKeyRevoked indica que el kid existe pero la clave fue revocada.
	// Política: una clave revocada deja de verificar inmediatamente.
	ErrKeyRevoked = errors.New("key_revoked")
)

// Keystore es la vista del rotation set que usa el emisor/verificador.
// Mantiene cache local de lectura corta y escribe por la forma que soporte
// el adapter (KeyWriter o KeyBulkWriter).
type Keystore struct {
	repo repository.KeyRepository

	mu         sync.RWMutex
	cached     []repository.SigningKey
	cacheUntil time.Time
	cacheTTL   time.Duration

	lastJWKS  []byte
	jwksUntil time.Time
	jwksTTL   time.Duration

	now func() time.Time
}

// NewKeystore crea un Keystore sobre el repositorio dado.
func NewKeystore(repo repository.KeyRepository) *Keystore {
	return &Keystore{
		repo:     repo,
		cacheTTL: 30 * time.Second,
		jwksTTL:  15 * time.Second,
		now:      time.Now,
	}
}

// EnsureBootstrap genera la primera clave si el rotation set está vacío.
func (k *Keystore) EnsureBootstrap(ctx context.Context) error {
	keys, err := k.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if !key.Revoked(k.now()) {
			return nil
		}
	}
	key, err := NewSigningKey(k.now())
	if err != nil {
		return err
	}
	if err := k.write(ctx, key, ""); err != nil {
		return err
	}
	k.invalidate()
	return nil
}

// Current devuelve la clave de firma vigente: la de created_at más reciente
// entre las no-revocadas. ErrNoActiveKey si no hay ninguna.
func (k *Keystore) Current(ctx context.Context) (*repository.SigningKey, error) {
	keys, err := k.all(ctx)
	if err != nil {
		return nil, err
	}
	now := k.now()
	var current *repository.SigningKey
	for i := range keys {
		key := keys[i]
		if key.Revoked(now) || len(key.PrivateKey) == 0 {
			continue
		}
		if current == nil || key.CreatedAt.After(current.CreatedAt) {
			current = &key
		}
	}
	if current == nil {
		return nil, ErrNoActiveKey
	}
	out := *current
	return &out, nil
}

// ListActive devuelve la vista pública del set: claves no-revocadas, sin
// material privado. Es lo que expone el JWKS.
func (k *Keystore) ListActive(ctx context.Context) ([]repository.SigningKey, error) {
	keys, err := k.all(ctx)
	if err != nil {
		return nil, err
	}
	now := k.now()
	out := make([]repository.SigningKey, 0, len(keys))
	for _, key := range keys {
		if key.Revoked(now) {
			continue
		}
		key.PrivateKey = nil
		out = append(out, key)
	}
	return out, nil
}

// PublicKeyByKID resuelve la clave pública para verificar un token con ese
// kid. Acepta CUALQUIER clave no-revocada, no solo la vigente: eso hace
// segura la rotación. Revocada => ErrKeyRevoked (fail-closed).
func (k *Keystore) PublicKeyByKID(ctx context.Context, kid string) (ed25519.PublicKey, error) {
	keys, err := k.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if key.KID != kid {
			continue
		}
		if key.Revoked(k.now()) {
			return nil, ErrKeyRevoked
		}
		return ed25519.PublicKey(key.PublicKey), nil
	}
	return nil, ErrKIDNotFound
}

// Rotate agrega una clave nueva al set; las anteriores siguen verificando
// hasta que alguien las revoque. Devuelve la clave nueva (vista pública).
func (k *Keystore) Rotate(ctx context.Context) (*repository.SigningKey, error) {
	key, err := NewSigningKey(k.now())
	if err != nil {
		return nil, err
	}
	if err := k.write(ctx, key, ""); err != nil {
		return nil, err
	}
	k.invalidate()
	out := *key
	out.PrivateKey = nil
	return &out, nil
}

// Revoke revoca una clave por kid. Tokens firmados con ella dejan de
// verificar de inmediato.
func (k *Keystore) Revoke(ctx context.Context, kid string) error {
	if err := k.write(ctx, nil, kid); err != nil {
		return err
	}
	k.invalidate()
	return nil
}

// JWKSJSON construye el documento JWKS (cache corto).
func (k *Keystore) JWKSJSON(ctx context.Context) ([]byte, error) {
	k.mu.RLock()
	if k.now().Before(k.jwksUntil) && len(k.lastJWKS) > 0 {
		defer k.mu.RUnlock()
		return k.lastJWKS, nil
	}
	k.mu.RUnlock()

	pub, err := k.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	j := buildJWKS(pub)

	k.mu.Lock()
	k.lastJWKS = j
	k.jwksUntil = k.now().Add(k.jwksTTL)
	k.mu.Unlock()
	return j, nil
}

// all lee el set completo con cache de lectura corta.
func (k *Keystore) all(ctx context.Context) ([]repository.SigningKey, error) {
	k.mu.RLock()
	if k.now().Before(k.cacheUntil) && k.cached != nil {
		out := append([]repository.SigningKey(nil), k.cached...)
		k.mu.RUnlock()
		return out, nil
	}
	k.mu.RUnlock()

	keys, err := k.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.cached = append([]repository.SigningKey(nil), keys...)
	k.cacheUntil = k.now().Add(k.cacheTTL)
	k.mu.Unlock()
	return keys, nil
}

// write aplica un alta (key != nil) o una revocación (kid != "") usando la
// forma de escritura que el adapter soporte.
func (k *Keystore) write(ctx context.Context, key *repository.SigningKey, revokeKID string) error {
	if w, ok := k.repo.(repository.KeyWriter); ok {
		if key != nil {
			return w.Create(ctx, key)
		}
		return w.Revoke(ctx, revokeKID, k.now().UTC())
	}
	if bw, ok := k.repo.(repository.KeyBulkWriter); ok {
		keys, err := k.repo.List(ctx)
		if err != nil {
			return err
		}
		if key != nil {
			keys = append(keys, *key)
			return bw.Upsert(ctx, keys)
		}
		found := false
		now := k.now().UTC()
		for i := range keys {
			if keys[i].KID == revokeKID {
				keys[i].RevokedAt = &now
				found = true
			}
		}
		if !found {
			return repository.ErrNotFound
		}
		return bw.Upsert(ctx, keys)
	}
	return fmt.Errorf("key repository is read-only: no KeyWriter ni KeyBulkWriter")
}

func (k *Keystore) invalidate() {
	k.mu.Lock()
	k.cached = nil
	k.cacheUntil = time.Time{}
	k.lastJWKS = nil
	k.jwksUntil = time.Time{}
	k.mu.Unlock()
}
