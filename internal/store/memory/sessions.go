package memory

import (
	"context"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
)

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(ctx context.Context, session *repository.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[session.ID]; ok {
		return repository.ErrConflict
	}
	sess := *session
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	r.s.sessions[sess.ID] = sess
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*repository.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := sess
	return &out, nil
}

// Use es el check-and-set atómico de consumo: una sola llamada gana.
func (r *sessionRepo) Use(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	if sess.UsedAt != nil {
		return repository.ErrSessionUsed
	}
	t := at
	sess.UsedAt = &t
	r.s.sessions[id] = sess
	return nil
}

func (r *sessionRepo) Remove(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.sessions, id)
	return nil
}
