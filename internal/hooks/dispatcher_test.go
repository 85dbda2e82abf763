package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	httpx "github.com/authrim/authrim/internal/http"
	"github.com/authrim/authrim/internal/store/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condición no alcanzada a tiempo")
}

func TestDispatch_PostsPayload(t *testing.T) {
	got := make(chan Payload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		got <- p
	}))
	defer srv.Close()

	s := memory.New()
	s.AddHook(repository.Hook{
		ID: "h1", TenantID: "tenantId", URL: srv.URL,
		TriggerID: repository.TriggerPostUserLogin, Enabled: true,
	})

	d := NewDispatcher(s.Hooks(), 4, WithTimeout(time.Second))
	d.Dispatch(context.Background(), "tenantId", repository.TriggerPostUserLogin,
		&repository.User{ID: "u1", Email: "foo@example.com"})

	select {
	case p := <-got:
		assert.Equal(t, repository.TriggerPostUserLogin, p.TriggerID)
		assert.Equal(t, "tenantId", p.TenantID)
		require.NotNil(t, p.User)
		assert.Equal(t, "u1", p.User.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("el hook nunca llegó")
	}
}

func TestDispatch_FiltersByTriggerAndEnabled(t *testing.T) {
	hits := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		hits <- p.TriggerID
	}))
	defer srv.Close()

	s := memory.New()
	s.AddHook(repository.Hook{ID: "h1", TenantID: "tenantId", URL: srv.URL,
		TriggerID: repository.TriggerPostUserLogin, Enabled: true})
	s.AddHook(repository.Hook{ID: "h2", TenantID: "tenantId", URL: srv.URL,
		TriggerID: repository.TriggerPostUserRegistration, Enabled: true})
	s.AddHook(repository.Hook{ID: "h3", TenantID: "tenantId", URL: srv.URL,
		TriggerID: repository.TriggerPostUserLogin, Enabled: false})

	d := NewDispatcher(s.Hooks(), 4, WithTimeout(time.Second))
	d.Dispatch(context.Background(), "tenantId", repository.TriggerPostUserLogin, nil)

	select {
	case trig := <-hits:
		assert.Equal(t, repository.TriggerPostUserLogin, trig)
	case <-time.After(2 * time.Second):
		t.Fatal("el hook habilitado nunca llegó")
	}
	// Solo el hook habilitado del trigger correcto dispara.
	select {
	case <-hits:
		t.Fatal("llegó un hook de más")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDispatch_FailingHookNeverBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := memory.New()
	s.AddHook(repository.Hook{ID: "h1", TenantID: "tenantId", URL: srv.URL,
		TriggerID: repository.TriggerPostUserLogin, Enabled: true})
	s.AddHook(repository.Hook{ID: "h2", TenantID: "tenantId", URL: "http://127.0.0.1:1",
		TriggerID: repository.TriggerPostUserLogin, Enabled: true})

	d := NewDispatcher(s.Hooks(), 4, WithTimeout(500*time.Millisecond))

	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), "tenantId", repository.TriggerPostUserLogin, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch bloqueó al llamador")
	}
}

func TestDispatch_NoHooksIsNoop(t *testing.T) {
	d := NewDispatcher(memory.New().Hooks(), 4)
	d.Dispatch(context.Background(), "tenantId", repository.TriggerPostUserLogin, nil)
}

func TestDispatch_CountsDispatchedHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := httpx.RegisterMetrics(reg)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	const trigger = "metrics-count-trigger"
	s := memory.New()
	s.AddHook(repository.Hook{ID: "h1", TenantID: "tenantId", URL: srv.URL,
		TriggerID: trigger, Enabled: true})
	s.AddHook(repository.Hook{ID: "h2", TenantID: "tenantId", URL: srv.URL,
		TriggerID: trigger, Enabled: true})

	d := NewDispatcher(s.Hooks(), 4, WithTimeout(time.Second))
	d.Dispatch(context.Background(), "tenantId", trigger, nil)

	// El contador se incrementa al lanzar el POST, no al completarlo.
	assert.Equal(t, 2.0, counterValue(t, reg, "hook_dispatches_total", trigger))
}

// counterValue suma las muestras del counter con el label trigger dado.
func counterValue(t *testing.T, reg *prometheus.Registry, name, trigger string) float64 {
	t.Helper()
	fams, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range fams {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "trigger" && l.GetValue() == trigger {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestDispatch_SaturatedSemaphoreDrops(t *testing.T) {
	release := make(chan struct{})
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		<-release
	}))
	defer srv.Close()

	s := memory.New()
	for i := 0; i < 4; i++ {
		s.AddHook(repository.Hook{ID: string(rune('a' + i)), TenantID: "tenantId", URL: srv.URL,
			TriggerID: repository.TriggerPostUserLogin, Enabled: true})
	}

	// Con capacidad 1, a lo sumo un POST queda en vuelo; el resto se descarta.
	d := NewDispatcher(s.Hooks(), 1, WithTimeout(2*time.Second))
	d.Dispatch(context.Background(), "tenantId", repository.TriggerPostUserLogin, nil)

	waitFor(t, func() bool { return received.Load() >= 1 })
	close(release)
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, received.Load(), int32(2))
}
