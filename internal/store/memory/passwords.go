package memory

import (
	"context"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/security/password"
)

type passwordRepo struct{ s *Store }

func (r *passwordRepo) Create(ctx context.Context, tenantID, userID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := userKey(tenantID, userID)
	if _, ok := r.s.passwords[key]; ok {
		return repository.ErrConflict
	}
	r.s.passwords[key] = repository.Password{
		TenantID:  tenantID,
		UserID:    userID,
		Hash:      hash,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *passwordRepo) Update(ctx context.Context, tenantID, userID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := userKey(tenantID, userID)
	p, ok := r.s.passwords[key]
	if !ok {
		return repository.ErrNotFound
	}
	p.Hash = hash
	p.UpdatedAt = time.Now().UTC()
	r.s.passwords[key] = p
	return nil
}

func (r *passwordRepo) Validate(ctx context.Context, tenantID, userID, plain string) (bool, error) {
	r.s.mu.RLock()
	p, ok := r.s.passwords[userKey(tenantID, userID)]
	r.s.mu.RUnlock()
	if !ok {
		return false, repository.ErrNotFound
	}
	// argon2 fuera del lock: es costoso a propósito
	return password.Verify(plain, p.Hash), nil
}
