package handlers

import (
	stdhttp "net/http"

	httpx "github.com/authrim/authrim/internal/http"
	"github.com/authrim/authrim/internal/token"
	"github.com/go-chi/chi/v5"
)

// TokenHandler maneja POST /oauth2/token.
type TokenHandler struct {
	Svc *token.Service
}

func (h *TokenHandler) Register(r chi.Router) {
	r.Post("/oauth2/token", h.Token)
}

// Token resuelve el grant. Acepta client_secret_post (form) y
// client_secret_basic (Authorization header).
func (h *TokenHandler) Token(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "body form-urlencoded inválido")
		return
	}

	req := token.Request{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		Username:     r.PostFormValue("username"),
		Password:     r.PostFormValue("password"),
		Scope:        r.PostFormValue("scope"),
	}
	if user, pass, ok := r.BasicAuth(); ok {
		req.ClientID = user
		req.ClientSecret = pass
	}

	resp, err := h.Svc.Grant(r.Context(), req)
	if err != nil {
		switch err {
		case token.ErrInvalidRequest:
			httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "faltan parámetros del grant")
		case token.ErrInvalidClient:
			w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
			httpx.WriteError(w, stdhttp.StatusUnauthorized, "invalid_client", "client o secret inválidos")
		case token.ErrInvalidGrant:
			httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_grant", "code o credenciales inválidas")
		case token.ErrUnsupportedGrantType:
			httpx.WriteError(w, stdhttp.StatusBadRequest, "unsupported_grant_type", "")
		default:
			httpx.WriteError(w, stdhttp.StatusInternalServerError, "server_error", "")
		}
		return
	}

	httpx.RecordTokenIssued(req.GrantType)
	httpx.WriteJSON(w, stdhttp.StatusOK, resp)
}
