package memory

import (
	"context"
	"sort"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
)

type keyRepo struct{ s *Store }

func (r *keyRepo) List(ctx context.Context) ([]repository.SigningKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := append([]repository.SigningKey(nil), r.s.keys...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *keyRepo) Create(ctx context.Context, key *repository.SigningKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, k := range r.s.keys {
		if k.KID == key.KID {
			return repository.ErrConflict
		}
	}
	k := *key
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	r.s.keys = append(r.s.keys, k)
	return nil
}

func (r *keyRepo) Revoke(ctx context.Context, kid string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.keys {
		if r.s.keys[i].KID == kid {
			t := at
			r.s.keys[i].RevokedAt = &t
			return nil
		}
	}
	return repository.ErrNotFound
}

type hookRepo struct{ s *Store }

func (r *hookRepo) List(ctx context.Context, tenantID, triggerID string) ([]repository.Hook, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []repository.Hook
	for _, h := range r.s.hooks[tenantID] {
		if h.TriggerID == triggerID && h.Enabled {
			out = append(out, h)
		}
	}
	return out, nil
}

// AddHook registra un hook (seed/admin; no es parte del contrato del engine).
func (s *Store) AddHook(h repository.Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	s.hooks[h.TenantID] = append(s.hooks[h.TenantID], h)
}

type logRepo struct{ s *Store }

func (r *logRepo) Create(ctx context.Context, entry *repository.LogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e := *entry
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}
	r.s.logs[e.TenantID] = append(r.s.logs[e.TenantID], e)
	return nil
}

func (r *logRepo) List(ctx context.Context, tenantID string, filter repository.ListLogsFilter) ([]repository.LogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	all := r.s.logs[tenantID]
	var out []repository.LogEntry
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		e := all[i]
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
