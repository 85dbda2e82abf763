package handlers

import (
	stdhttp "net/http"

	httpx "github.com/authrim/authrim/internal/http"
	jwtx "github.com/authrim/authrim/internal/jwt"
	"github.com/go-chi/chi/v5"
)

// JWKSHandler expone el JWKS público.
type JWKSHandler struct {
	Keys *jwtx.Keystore
}

func (h *JWKSHandler) Register(r chi.Router) {
	r.Get("/.well-known/jwks.json", h.JWKS)
}

func (h *JWKSHandler) JWKS(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	body, err := h.Keys.JWKSJSON(r.Context())
	if err != nil {
		httpx.WriteError(w, stdhttp.StatusInternalServerError, "server_error", "")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write(body)
}
