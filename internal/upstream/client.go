// Package upstream habla con los identity providers federados configurados
// como Connections del tenant: arma la URL de autorización, canjea el code y
// extrae la identidad del id_token.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Client es un cliente HTTP compartido para todos los upstreams.
type Client struct {
	http *http.Client
}

// New crea el cliente con timeout corto.
func New() *Client {
	return &Client{http: &http.Client{Timeout: 10 * time.Second}}
}

// AuthorizationURL construye la URL de autorización del upstream.
func AuthorizationURL(conn *repository.Connection, redirectURI, state, nonce string) (string, error) {
	u, err := url.Parse(conn.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("upstream %s: authorization_endpoint inválido: %w", conn.Name, err)
	}
	rt := conn.ResponseType
	if rt == "" {
		rt = "code"
	}
	scope := conn.Scope
	if scope == "" {
		scope = "openid email profile"
	}
	q := u.Query()
	q.Set("response_type", rt)
	q.Set("client_id", conn.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", scope)
	q.Set("state", state)
	if nonce != "" {
		q.Set("nonce", nonce)
	}
	if conn.ResponseMode != "" {
		q.Set("response_mode", conn.ResponseMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// TokenResponse es la respuesta del token endpoint del upstream.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	RefreshTok  string `json:"refresh_token,omitempty"`
}

// ExchangeCode canjea el authorization code contra el token endpoint del upstream.
func (c *Client) ExchangeCode(ctx context.Context, conn *repository.Connection, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", conn.ClientID)
	form.Set("client_secret", conn.ClientSecret)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var b struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		return nil, fmt.Errorf("upstream %s: token http %d: %s %s", conn.Name, resp.StatusCode, b.Error, b.ErrorDescription)
	}
	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

type idClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
	jwtv5.RegisteredClaims
}

// Identity extrae la identidad del id_token recibido del upstream.
// El token llegó directo del token endpoint por TLS, así que su origen ya
// está autenticado (OIDC Core 3.1.3.7 permite omitir la validación de firma
// en ese caso).
func Identity(conn *repository.Connection, tr *TokenResponse) (*repository.User, error) {
	if tr.IDToken == "" {
		return nil, fmt.Errorf("upstream %s: respuesta sin id_token", conn.Name)
	}
	var claims idClaims
	parser := jwtv5.NewParser()
	if _, _, err := parser.ParseUnverified(tr.IDToken, &claims); err != nil {
		return nil, fmt.Errorf("upstream %s: id_token inválido: %w", conn.Name, err)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("upstream %s: id_token sin sub", conn.Name)
	}
	return &repository.User{
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Provider:      conn.Name,
		Connection:    conn.Name,
		Name:          claims.Name,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		Picture:       claims.Picture,
		Locale:        claims.Locale,
	}, nil
}
