package memory

import (
	"context"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
)

type codeRepo struct{ s *Store }

func (r *codeRepo) Create(ctx context.Context, code *repository.Code) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := codeKey(code.TenantID, code.ID)
	if _, ok := r.s.codes[key]; ok {
		return repository.ErrConflict
	}
	c := *code
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	r.s.codes[key] = c
	return nil
}

func (r *codeRepo) List(ctx context.Context, tenantID, email string, typ repository.CodeType) ([]repository.Code, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	want := emailKey(tenantID, email)
	var out []repository.Code
	for _, c := range r.s.codes {
		if c.TenantID == tenantID && c.Type == typ && emailKey(c.TenantID, c.Email) == want {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *codeRepo) FindByValue(ctx context.Context, tenantID, value string, typ repository.CodeType) (*repository.Code, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.codes {
		if c.TenantID == tenantID && c.Type == typ && c.Code == value {
			out := c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Use es el check-and-set atómico de redención. Exactamente una llamada
// concurrente gana; las demás observan ErrCodeUsed.
func (r *codeRepo) Use(ctx context.Context, tenantID, codeID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := codeKey(tenantID, codeID)
	c, ok := r.s.codes[key]
	if !ok {
		return repository.ErrNotFound
	}
	if c.UsedAt != nil {
		return repository.ErrCodeUsed
	}
	t := at
	c.UsedAt = &t
	r.s.codes[key] = c
	return nil
}
