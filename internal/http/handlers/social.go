package handlers

import (
	stdhttp "net/http"
	"strings"

	"github.com/authrim/authrim/internal/authorize"
	"github.com/authrim/authrim/internal/domain/repository"
	httpx "github.com/authrim/authrim/internal/http"
	"github.com/authrim/authrim/internal/observability/logger"
	"github.com/authrim/authrim/internal/upstream"
	"github.com/go-chi/chi/v5"
)

// SocialHandler arranca y completa el login federado contra las Connections
// del tenant: /start redirige al provider, /callback canjea el code recibido
// y entrega la identidad al engine.
type SocialHandler struct {
	Engine      *authorize.Engine
	Sessions    repository.SessionRepository
	Connections repository.ConnectionRepository
	Upstream    *upstream.Client

	// CallbackURL es la URL pública de /v2/auth/social/callback, registrada
	// como redirect_uri en cada provider.
	CallbackURL string
}

func (h *SocialHandler) Register(r chi.Router) {
	r.Get("/v2/auth/social/start", h.Start)
	r.Get("/v2/auth/social/callback", h.Callback)
}

// Start redirige al authorization endpoint del provider elegido. El state del
// upstream lleva sesión y connection juntos para que el callback pueda
// retomar el flujo sin estado en el servidor.
func (h *SocialHandler) Start(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	sessID := q.Get("state")
	connName := q.Get("connection")
	if sessID == "" || connName == "" {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "state y connection son requeridos")
		return
	}

	sess, err := h.Sessions.Get(r.Context(), sessID)
	if err != nil {
		if repository.IsNotFound(err) {
			httpx.WriteError(w, stdhttp.StatusBadRequest, "expired_session", "la sesión de login expiró, reiniciar el flujo")
			return
		}
		httpx.WriteError(w, stdhttp.StatusInternalServerError, "server_error", "")
		return
	}

	conn, err := h.Connections.GetByName(r.Context(), sess.TenantID, connName)
	if err != nil {
		if repository.IsNotFound(err) {
			httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "connection desconocida")
			return
		}
		httpx.WriteError(w, stdhttp.StatusInternalServerError, "server_error", "")
		return
	}

	loc, err := upstream.AuthorizationURL(conn, h.CallbackURL, upstreamState(sess.ID, conn.Name), sess.AuthParams.Nonce)
	if err != nil {
		logger.From(r.Context()).Warn("social start failed", logger.Err(err))
		httpx.WriteError(w, stdhttp.StatusInternalServerError, "server_error", "")
		return
	}
	stdhttp.Redirect(w, r, loc, stdhttp.StatusFound)
}

// Callback recibe el retorno del provider, canjea el code contra su token
// endpoint y completa la sesión con la identidad extraída. En éxito redirige
// al callback del client (el browser viene del provider, no de un fetch).
func (h *SocialHandler) Callback(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		httpx.RecordLoginAttempt("social", false)
		httpx.WriteError(w, stdhttp.StatusBadRequest, "upstream_error", e)
		return
	}
	code := q.Get("code")
	sessID, connName, ok := parseUpstreamState(q.Get("state"))
	if code == "" || !ok {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "code y state son requeridos")
		return
	}

	sess, err := h.Sessions.Get(r.Context(), sessID)
	if err != nil {
		if repository.IsNotFound(err) {
			httpx.WriteError(w, stdhttp.StatusBadRequest, "expired_session", "la sesión de login expiró, reiniciar el flujo")
			return
		}
		httpx.WriteError(w, stdhttp.StatusInternalServerError, "server_error", "")
		return
	}
	conn, err := h.Connections.GetByName(r.Context(), sess.TenantID, connName)
	if err != nil {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "connection desconocida")
		return
	}

	tr, err := h.Upstream.ExchangeCode(r.Context(), conn, code, h.CallbackURL)
	if err != nil {
		logger.From(r.Context()).Warn("upstream exchange failed", logger.Err(err))
		httpx.RecordLoginAttempt("social", false)
		httpx.WriteError(w, stdhttp.StatusBadGateway, "upstream_error", "el provider rechazó el intercambio")
		return
	}
	candidate, err := upstream.Identity(conn, tr)
	if err != nil {
		logger.From(r.Context()).Warn("upstream identity failed", logger.Err(err))
		httpx.RecordLoginAttempt("social", false)
		httpx.WriteError(w, stdhttp.StatusBadGateway, "upstream_error", "identidad del provider inválida")
		return
	}

	red, err := h.Engine.CompleteSocial(r.Context(), sess.ID, *candidate)
	httpx.RecordLoginAttempt("social", err == nil)
	if err != nil {
		writeAuthorizeError(w, err)
		return
	}
	stdhttp.Redirect(w, r, red.Location, stdhttp.StatusFound)
}

// upstreamState empaqueta sesión y connection en el state del provider.
// El separador no aparece en UUIDs ni en nombres de connection.
func upstreamState(sessionID, connection string) string {
	return sessionID + "|" + connection
}

func parseUpstreamState(state string) (sessionID, connection string, ok bool) {
	sessionID, connection, found := strings.Cut(state, "|")
	if !found || sessionID == "" || connection == "" {
		return "", "", false
	}
	return sessionID, connection, true
}
