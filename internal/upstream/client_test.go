package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/authrim/authrim/internal/domain/repository"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConn(tokenURL string) *repository.Connection {
	return &repository.Connection{
		ID: "conn1", TenantID: "tenantId", Name: "google-oauth2",
		ClientID: "upstream-client", ClientSecret: "upstream-secret",
		AuthorizationEndpoint: "https://accounts.google.test/o/oauth2/v2/auth",
		TokenEndpoint:         tokenURL,
	}
}

func TestAuthorizationURL(t *testing.T) {
	conn := testConn("")
	raw, err := AuthorizationURL(conn, "http://localhost:8080/social/callback", "st-1", "n-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "upstream-client", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/social/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "st-1", q.Get("state"))
	assert.Equal(t, "n-1", q.Get("nonce"))
}

func TestAuthorizationURL_ConnectionOverrides(t *testing.T) {
	conn := testConn("")
	conn.Scope = "openid"
	conn.ResponseMode = "form_post"
	raw, err := AuthorizationURL(conn, "http://cb", "st", "")
	require.NoError(t, err)

	u, _ := url.Parse(raw)
	q := u.Query()
	assert.Equal(t, "openid", q.Get("scope"))
	assert.Equal(t, "form_post", q.Get("response_mode"))
	assert.Empty(t, q.Get("nonce"))
}

func signUnverified(t *testing.T, claims jwtv5.MapClaims) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("upstream-hmac"))
	require.NoError(t, err)
	return s
}

func TestExchangeCodeAndIdentity(t *testing.T) {
	idToken := signUnverified(t, jwtv5.MapClaims{
		"sub": "google-sub-1", "email": "foo@example.com", "email_verified": true,
		"name": "Foo Bar", "picture": "https://p.test/x.png",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostFormValue("grant_type"))
		assert.Equal(t, "the-code", r.PostFormValue("code"))
		assert.Equal(t, "upstream-secret", r.PostFormValue("client_secret"))
		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "at", IDToken: idToken, TokenType: "Bearer",
		})
	}))
	defer srv.Close()

	conn := testConn(srv.URL)
	c := New()
	tr, err := c.ExchangeCode(context.Background(), conn, "the-code", "http://cb")
	require.NoError(t, err)

	user, err := Identity(conn, tr)
	require.NoError(t, err)
	assert.Equal(t, "foo@example.com", user.Email)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, "google-oauth2", user.Provider)
	assert.Equal(t, "google-oauth2", user.Connection)
	assert.Equal(t, "Foo Bar", user.Name)
}

func TestExchangeCode_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer srv.Close()

	c := New()
	_, err := c.ExchangeCode(context.Background(), testConn(srv.URL), "stale", "http://cb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestIdentity_Invalid(t *testing.T) {
	conn := testConn("")

	_, err := Identity(conn, &TokenResponse{})
	assert.Error(t, err, "sin id_token")

	_, err = Identity(conn, &TokenResponse{IDToken: "no.es.jwt"})
	assert.Error(t, err)

	// id_token sin sub.
	noSub := signUnverified(t, jwtv5.MapClaims{"email": "x@y.z"})
	_, err = Identity(conn, &TokenResponse{IDToken: noSub})
	assert.Error(t, err)
}
