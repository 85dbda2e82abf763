// Package hooks despacha webhooks de registro/login a los endpoints
// configurados por tenant. Fire-and-forget: un hook caído nunca bloquea ni
// falla el flujo de autenticación que lo disparó.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	httpx "github.com/authrim/authrim/internal/http"
	"github.com/authrim/authrim/internal/observability/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Payload es el cuerpo POSTeado a cada hook.
type Payload struct {
	TriggerID string           `json:"trigger_id"`
	TenantID  string           `json:"tenant_id"`
	User      *repository.User `json:"user,omitempty"`
}

// Dispatcher invoca hooks en paralelo con concurrencia acotada.
type Dispatcher struct {
	repo    repository.HookRepository
	client  *http.Client
	sem     *semaphore.Weighted
	timeout time.Duration
}

// Option configura el Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient reemplaza el cliente HTTP (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithTimeout fija el timeout por llamada saliente.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// NewDispatcher crea un Dispatcher con a lo sumo maxInflight POSTs en vuelo.
func NewDispatcher(repo repository.HookRepository, maxInflight int64, opts ...Option) *Dispatcher {
	if maxInflight <= 0 {
		maxInflight = 16
	}
	d := &Dispatcher{
		repo:    repo,
		client:  &http.Client{Timeout: 10 * time.Second},
		sem:     semaphore.NewWeighted(maxInflight),
		timeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch busca los hooks de (tenant, trigger) y los invoca cada uno en su
// goroutine. Retorna apenas lanzados; errores individuales solo se loguean.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, triggerID string, user *repository.User) {
	log := logger.From(ctx).With(logger.TenantID(tenantID), logger.Trigger(triggerID))

	hks, err := d.repo.List(ctx, tenantID, triggerID)
	if err != nil {
		log.Warn("hook list failed", logger.Err(err))
		return
	}
	if len(hks) == 0 {
		return
	}

	body, err := json.Marshal(Payload{TriggerID: triggerID, TenantID: tenantID, User: user})
	if err != nil {
		log.Warn("hook payload marshal failed", logger.Err(err))
		return
	}

	for _, h := range hks {
		h := h
		// El semáforo acota cuántos POSTs hay en vuelo en todo el proceso.
		// Si está saturado, se descarta el hook: observacional, no transaccional.
		if !d.sem.TryAcquire(1) {
			log.Warn("hook dropped, dispatcher saturated", logger.URL(h.URL))
			continue
		}
		httpx.RecordHookDispatch(triggerID)
		go func() {
			defer d.sem.Release(1)
			d.post(h, body, log)
		}()
	}
}

func (d *Dispatcher) post(h repository.Hook, body []byte, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		log.Warn("hook request build failed", logger.URL(h.URL), logger.Err(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn("hook call failed", logger.URL(h.URL), logger.Err(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("hook returned non-2xx", logger.URL(h.URL), logger.Status(resp.StatusCode))
		return
	}
	log.Debug("hook delivered", logger.URL(h.URL), logger.Status(resp.StatusCode))
}
