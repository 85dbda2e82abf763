package memory

import (
	"context"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
)

type tenantRepo struct{ s *Store }

func (r *tenantRepo) Create(ctx context.Context, tenant *repository.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[tenant.ID]; ok {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	t := *tenant
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	r.s.tenants[t.ID] = t
	return nil
}

func (r *tenantRepo) Get(ctx context.Context, id string) (*repository.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := t
	return &out, nil
}

func (r *tenantRepo) List(ctx context.Context) ([]repository.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]repository.Tenant, 0, len(r.s.tenants))
	for _, t := range r.s.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (r *tenantRepo) Update(ctx context.Context, id string, input repository.UpdateTenantInput) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return repository.ErrNotFound
	}
	if input.Name != nil {
		t.Name = *input.Name
	}
	if input.Audience != nil {
		t.Audience = *input.Audience
	}
	if input.SenderEmail != nil {
		t.SenderEmail = *input.SenderEmail
	}
	if input.SenderName != nil {
		t.SenderName = *input.SenderName
	}
	if input.Language != nil {
		t.Language = *input.Language
	}
	if input.LogoURL != nil {
		t.LogoURL = *input.LogoURL
	}
	if input.PrimaryColor != nil {
		t.PrimaryColor = *input.PrimaryColor
	}
	if input.SupportURL != nil {
		t.SupportURL = *input.SupportURL
	}
	t.UpdatedAt = time.Now().UTC()
	r.s.tenants[id] = t
	return nil
}

func (r *tenantRepo) Remove(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.tenants, id)
	return nil
}
