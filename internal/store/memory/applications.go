package memory

import (
	"context"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
)

type applicationRepo struct{ s *Store }

func (r *applicationRepo) Create(ctx context.Context, tenantID string, app *repository.Application) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.apps[app.ID]; ok {
		return repository.ErrConflict
	}
	if _, ok := r.s.tenants[tenantID]; !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	a := *app
	a.TenantID = tenantID
	if a.EmailValidation == "" {
		a.EmailValidation = repository.EmailValidationEnabled
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.s.apps[a.ID] = a
	return nil
}

// Get resuelve por client_id global y arma el join con tenant y connections.
func (r *applicationRepo) Get(ctx context.Context, clientID string) (*repository.ApplicationInfo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.apps[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t, ok := r.s.tenants[a.TenantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	conns := append([]repository.Connection(nil), r.s.connections[a.TenantID]...)
	return &repository.ApplicationInfo{
		Application: a,
		Tenant:      t,
		Connections: conns,
	}, nil
}

type connectionRepo struct{ s *Store }

func (r *connectionRepo) Create(ctx context.Context, tenantID string, conn *repository.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[tenantID]; !ok {
		return repository.ErrNotFound
	}
	for _, c := range r.s.connections[tenantID] {
		if c.Name == conn.Name {
			return repository.ErrConflict
		}
	}
	c := *conn
	c.TenantID = tenantID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = time.Now().UTC()
	r.s.connections[tenantID] = append(r.s.connections[tenantID], c)
	return nil
}

func (r *connectionRepo) List(ctx context.Context, tenantID string) ([]repository.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]repository.Connection(nil), r.s.connections[tenantID]...), nil
}

func (r *connectionRepo) GetByName(ctx context.Context, tenantID, name string) (*repository.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.connections[tenantID] {
		if c.Name == name {
			out := c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}
