// Package handlers expone los endpoints OAuth2/OIDC y de login sobre chi.
package handlers

import (
	stdhttp "net/http"
	"net/url"

	"github.com/authrim/authrim/internal/authorize"
	httpx "github.com/authrim/authrim/internal/http"
	"github.com/go-chi/chi/v5"
)

// AuthorizeHandler maneja GET /oauth2/authorize.
type AuthorizeHandler struct {
	Engine *authorize.Engine
	// LoginURL es la página de login hosteada a la que se redirige con
	// state=<session_id>. Default "/u/login".
	LoginURL string
}

func (h *AuthorizeHandler) Register(r chi.Router) {
	r.Get("/oauth2/authorize", h.Authorize)
}

// Authorize valida el request y redirige a la página de login con la sesión
// creada. Los errores de validación NUNCA redirigen a la redirect_uri.
func (h *AuthorizeHandler) Authorize(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	req := authorize.AuthRequest{
		ClientID:            q.Get("client_id"),
		ResponseType:        q.Get("response_type"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		ResponseMode:        q.Get("response_mode"),
	}

	sess, err := h.Engine.Start(r.Context(), req)
	if err != nil {
		switch err {
		case authorize.ErrInvalidRequest:
			httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "parámetros inválidos")
		case authorize.ErrUnauthorizedClient:
			httpx.WriteError(w, stdhttp.StatusBadRequest, "unauthorized_client", "client desconocido o redirect_uri no permitida")
		default:
			httpx.WriteError(w, stdhttp.StatusInternalServerError, "server_error", "")
		}
		return
	}

	loginURL := h.LoginURL
	if loginURL == "" {
		loginURL = "/u/login"
	}
	stdhttp.Redirect(w, r, loginURL+"?state="+url.QueryEscape(sess.ID), stdhttp.StatusFound)
}
