// Package router arma el chi.Mux del servidor con su middleware chain.
package router

import (
	"context"
	stdhttp "net/http"

	httpx "github.com/authrim/authrim/internal/http"
	"github.com/authrim/authrim/internal/http/handlers"
	mw "github.com/authrim/authrim/internal/http/middlewares"
	"github.com/authrim/authrim/internal/rate"
	"github.com/go-chi/chi/v5"
)

// Deps contiene los handlers y políticas del router.
type Deps struct {
	Authorize *handlers.AuthorizeHandler
	Login     *handlers.LoginHandler
	Social    *handlers.SocialHandler
	Token     *handlers.TokenHandler
	JWKS      *handlers.JWKSHandler
	Discovery *handlers.DiscoveryHandler
	Flows     *handlers.FlowsHandler

	CORSAllowedOrigins []string
	LoginLimiter       rate.Limiter // login y signup
	ForgotLimiter      rate.Limiter // emisión de códigos por email
	Metrics            stdhttp.Handler

	// Ready chequea el estado de las dependencias para /readyz.
	Ready func(ctx context.Context) error
}

// New construye el router completo.
func New(d Deps) *chi.Mux {
	r := chi.NewRouter()

	base := []mw.Middleware{
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithLogging(),
	}
	if len(d.CORSAllowedOrigins) > 0 {
		base = append([]mw.Middleware{mw.WithCORS(d.CORSAllowedOrigins)}, base...)
	}
	for _, m := range base {
		r.Use(stdMiddleware(m))
	}
	r.Use(func(next stdhttp.Handler) stdhttp.Handler { return httpx.WithMetrics(next) })

	// Health
	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		if d.Ready != nil {
			if err := d.Ready(req.Context()); err != nil {
				httpx.WriteError(w, stdhttp.StatusServiceUnavailable, "not_ready", err.Error())
				return
			}
		}
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	// Documentos públicos cacheables.
	d.JWKS.Register(r)
	d.Discovery.Register(r)

	// Endpoints OAuth2: sin cache.
	r.Group(func(r chi.Router) {
		r.Use(stdMiddleware(mw.WithNoStore()))
		d.Authorize.Register(r)
		d.Token.Register(r)
	})

	// Login interactivo: rate limit por IP.
	r.Group(func(r chi.Router) {
		r.Use(stdMiddleware(mw.WithNoStore()))
		r.Use(stdMiddleware(mw.WithRateLimit(d.LoginLimiter, mw.IPOnlyRateKey)))
		d.Login.Register(r)
		if d.Social != nil {
			d.Social.Register(r)
		}
	})

	// Flujos por email: ventana más agresiva contra enumeración y spam.
	r.Group(func(r chi.Router) {
		r.Use(stdMiddleware(mw.WithNoStore()))
		r.Use(stdMiddleware(mw.WithRateLimit(d.ForgotLimiter, mw.IPPathRateKey)))
		d.Flows.Register(r)
	})

	return r
}

func stdMiddleware(m mw.Middleware) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler { return m(next) }
}
