package memory

import (
	"context"
	"strings"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
)

type userRepo struct{ s *Store }

// Create inserta un usuario. La constraint de primario verificado único por
// (tenant_id, email) se mantiene bajo el mismo lock que el insert, así que
// dos signups concurrentes con el mismo email no pueden crear dos primarios.
func (r *userRepo) Create(ctx context.Context, user *repository.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := userKey(user.TenantID, user.ID)
	if _, ok := r.s.users[key]; ok {
		return repository.ErrConflict
	}

	isPrimaryVerified := user.LinkedTo == nil && user.EmailVerified && user.Email != ""
	ek := emailKey(user.TenantID, user.Email)
	if isPrimaryVerified {
		if _, taken := r.s.primaries[ek]; taken {
			return repository.ErrConflict
		}
	}

	now := time.Now().UTC()
	u := *user
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.s.users[key] = u
	if isPrimaryVerified {
		r.s.primaries[ek] = u.ID
	}
	return nil
}

func (r *userRepo) Get(ctx context.Context, tenantID, userID string) (*repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userKey(tenantID, userID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := u
	return &out, nil
}

func (r *userRepo) GetPrimaryByEmail(ctx context.Context, tenantID, email string) (*repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.primaries[emailKey(tenantID, email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u, ok := r.s.users[userKey(tenantID, id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := u
	return &out, nil
}

func (r *userRepo) ListByEmail(ctx context.Context, tenantID, email string) ([]repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	want := strings.ToLower(strings.TrimSpace(email))
	var out []repository.User
	for _, u := range r.s.users {
		if u.TenantID == tenantID && strings.ToLower(u.Email) == want {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *userRepo) Update(ctx context.Context, tenantID, userID string, input repository.UpdateUserInput) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := userKey(tenantID, userID)
	u, ok := r.s.users[key]
	if !ok {
		return repository.ErrNotFound
	}

	wasPrimaryVerified := u.LinkedTo == nil && u.EmailVerified && u.Email != ""

	if input.Email != nil {
		u.Email = *input.Email
	}
	if input.EmailVerified != nil {
		u.EmailVerified = *input.EmailVerified
	}
	if input.Name != nil {
		u.Name = *input.Name
	}
	if input.GivenName != nil {
		u.GivenName = *input.GivenName
	}
	if input.FamilyName != nil {
		u.FamilyName = *input.FamilyName
	}
	if input.Nickname != nil {
		u.Nickname = *input.Nickname
	}
	if input.Picture != nil {
		u.Picture = *input.Picture
	}
	if input.Locale != nil {
		u.Locale = *input.Locale
	}
	if input.LinkedTo != nil {
		u.LinkedTo = input.LinkedTo
	}
	if input.LoginsCount != nil {
		u.LoginsCount = *input.LoginsCount
	}
	if input.LastLogin != nil {
		u.LastLogin = input.LastLogin
	}
	u.UpdatedAt = time.Now().UTC()

	// Reindexar el primario si cambió su condición.
	isPrimaryVerified := u.LinkedTo == nil && u.EmailVerified && u.Email != ""
	if wasPrimaryVerified && !isPrimaryVerified {
		delete(r.s.primaries, emailKey(tenantID, u.Email))
	}
	if isPrimaryVerified {
		ek := emailKey(tenantID, u.Email)
		if other, taken := r.s.primaries[ek]; taken && other != u.ID {
			return repository.ErrConflict
		}
		r.s.primaries[ek] = u.ID
	}

	r.s.users[key] = u
	return nil
}

func (r *userRepo) Remove(ctx context.Context, tenantID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := userKey(tenantID, userID)
	u, ok := r.s.users[key]
	if !ok {
		return repository.ErrNotFound
	}
	if u.LinkedTo == nil && u.EmailVerified {
		delete(r.s.primaries, emailKey(tenantID, u.Email))
	}
	delete(r.s.users, key)
	delete(r.s.passwords, key)
	return nil
}
