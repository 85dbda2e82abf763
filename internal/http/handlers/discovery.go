package handlers

import (
	stdhttp "net/http"
	"strings"

	httpx "github.com/authrim/authrim/internal/http"
	"github.com/go-chi/chi/v5"
)

// DiscoveryHandler expone el documento OIDC discovery.
type DiscoveryHandler struct {
	Issuer string
}

func (h *DiscoveryHandler) Register(r chi.Router) {
	r.Get("/.well-known/openid-configuration", h.Discovery)
}

func (h *DiscoveryHandler) Discovery(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	iss := strings.TrimRight(h.Issuer, "/")
	doc := map[string]any{
		"issuer":                                iss,
		"authorization_endpoint":                iss + "/oauth2/authorize",
		"token_endpoint":                        iss + "/oauth2/token",
		"jwks_uri":                              iss + "/.well-known/jwks.json",
		"response_types_supported":              []string{"code", "token", "id_token", "code id_token", "token id_token", "id_token token"},
		"response_modes_supported":              []string{"query", "fragment"},
		"grant_types_supported":                 []string{"authorization_code", "password", "implicit"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"EdDSA"},
		"scopes_supported":                      []string{"openid", "email", "profile"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post", "client_secret_basic", "none"},
		"code_challenge_methods_supported":      []string{"S256", "plain"},
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	httpx.WriteJSON(w, stdhttp.StatusOK, doc)
}
