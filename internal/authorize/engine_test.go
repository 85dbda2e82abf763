package authorize

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/authrim/authrim/internal/codes"
	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/identity"
	jwtx "github.com/authrim/authrim/internal/jwt"
	"github.com/authrim/authrim/internal/security/password"
	"github.com/authrim/authrim/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCallback = "http://localhost:3000/callback"
	testPassword = "Test1234!"
)

type fixture struct {
	store  *memory.Store
	engine *Engine
	issuer *jwtx.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.Tenants().Create(ctx, &repository.Tenant{
		ID: "tenantId", Name: "Acme", Audience: "https://api.acme.test",
	}))
	require.NoError(t, s.Applications().Create(ctx, "tenantId", &repository.Application{
		ID:                  "clientId",
		TenantID:            "tenantId",
		Name:                "Dashboard",
		AllowedCallbackURLs: []string{testCallback},
		EmailValidation:     repository.EmailValidationEnabled,
	}))

	ks := jwtx.NewKeystore(s.Keys())
	require.NoError(t, ks.EnsureBootstrap(ctx))
	issuer := jwtx.NewIssuer("http://localhost:8080", ks)

	eng := NewEngine(Deps{
		Apps:      s.Applications(),
		Users:     s.Users(),
		Passwords: s.Passwords(),
		Sessions:  s.Sessions(),
		Codes:     codes.NewService(s.Codes()),
		Issuer:    issuer,
		Resolver:  identity.NewResolver(s.Users(), nil),
	})
	return &fixture{store: s, engine: eng, issuer: issuer}
}

// seedUser crea un usuario email verificado con password Test1234!.
func (f *fixture) seedUser(t *testing.T, email string) *repository.User {
	t.Helper()
	ctx := context.Background()
	u := &repository.User{
		ID: "user-" + email, TenantID: "tenantId", Email: email,
		EmailVerified: true, Provider: ProviderEmail, Connection: ConnectionEmail,
	}
	require.NoError(t, f.store.Users().Create(ctx, u))
	hash, err := password.Hash(password.Default, testPassword)
	require.NoError(t, err)
	require.NoError(t, f.store.Passwords().Create(ctx, "tenantId", u.ID, hash))
	return u
}

func (f *fixture) start(t *testing.T, req AuthRequest) *repository.Session {
	t.Helper()
	if req.ClientID == "" {
		req.ClientID = "clientId"
	}
	if req.RedirectURI == "" {
		req.RedirectURI = testCallback
	}
	if req.ResponseType == "" {
		req.ResponseType = "code"
	}
	sess, err := f.engine.Start(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func redirectParams(t *testing.T, red *Redirect) url.Values {
	t.Helper()
	u, err := url.Parse(red.Location)
	require.NoError(t, err)
	if red.Mode == ResponseModeFragment {
		vals, err := url.ParseQuery(u.Fragment)
		require.NoError(t, err)
		return vals
	}
	return u.Query()
}

func TestStart_MissingParams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []AuthRequest{
		{ResponseType: "code", RedirectURI: testCallback},                          // sin client_id
		{ClientID: "clientId", ResponseType: "code"},                               // sin redirect_uri
		{ClientID: "clientId", RedirectURI: testCallback},                          // sin response_type
		{ClientID: "clientId", RedirectURI: testCallback, ResponseType: "texto"},   // response_type inválido
		{ClientID: "clientId", RedirectURI: testCallback, ResponseType: "code x"},  // componente inválido
	}
	for _, req := range cases {
		_, err := f.engine.Start(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}
}

func TestStart_UnknownClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Start(context.Background(), AuthRequest{
		ClientID: "nope", RedirectURI: testCallback, ResponseType: "code",
	})
	assert.ErrorIs(t, err, ErrUnauthorizedClient)
}

func TestStart_RedirectURINotAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, uri := range []string{
		"https://evil.test/callback",
		testCallback + "/",          // con slash final no matchea
		"http://localhost:3000/cb?x=1",
	} {
		_, err := f.engine.Start(ctx, AuthRequest{
			ClientID: "clientId", RedirectURI: uri, ResponseType: "code",
		})
		assert.ErrorIs(t, err, ErrUnauthorizedClient, "uri %q", uri)
	}
}

func TestStart_FiltersMalformedScopes(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t, AuthRequest{Scope: "openid  email BAD* openid profile"})
	assert.Equal(t, "openid email profile", sess.AuthParams.Scope)
}

func TestCompletePassword_CodeFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "foo@example.com")

	sess := f.start(t, AuthRequest{State: "xyz", Scope: "openid email"})

	red, err := f.engine.CompletePassword(ctx, sess.ID, "foo@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, ResponseModeQuery, red.Mode)
	assert.True(t, strings.HasPrefix(red.Location, testCallback+"?"))

	params := redirectParams(t, red)
	assert.Equal(t, "xyz", params.Get("state"))
	assert.NotEmpty(t, params.Get("code"))
	assert.Empty(t, params.Get("access_token"))
}

func TestCompletePassword_WrongPasswordAndUnknownEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "foo@example.com")

	sess := f.start(t, AuthRequest{})

	_, err := f.engine.CompletePassword(ctx, sess.ID, "foo@example.com", "incorrecta")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Email inexistente: mismo error, no se filtra existencia.
	_, err = f.engine.CompletePassword(ctx, sess.ID, "nadie@example.com", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// La sesión sobrevive a intentos fallidos.
	red, err := f.engine.CompletePassword(ctx, sess.ID, "foo@example.com", testPassword)
	require.NoError(t, err)
	assert.NotNil(t, red)
}

func TestFinish_SessionSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "foo@example.com")

	sess := f.start(t, AuthRequest{State: "xyz"})

	_, err := f.engine.CompletePassword(ctx, sess.ID, "foo@example.com", testPassword)
	require.NoError(t, err)

	// Una segunda emisión contra la misma sesión falla siempre.
	_, err = f.engine.CompletePassword(ctx, sess.ID, "foo@example.com", testPassword)
	assert.ErrorIs(t, err, ErrSessionConsumed)
}

func TestCompletePassword_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "foo@example.com")

	sess := f.start(t, AuthRequest{})

	f.engine.now = func() time.Time { return time.Now().Add(defaultSessionTTL + time.Minute) }
	_, err := f.engine.CompletePassword(ctx, sess.ID, "foo@example.com", testPassword)
	assert.ErrorIs(t, err, ErrExpiredSession)

	_, err = f.engine.CompletePassword(ctx, "no-such-session", "foo@example.com", testPassword)
	assert.ErrorIs(t, err, ErrExpiredSession)
}

func TestImplicitFlow_TokensInFragment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "foo@example.com")

	sess := f.start(t, AuthRequest{
		ResponseType: "token id_token",
		Scope:        "openid email",
		State:        "xyz",
		Nonce:        "n-123",
	})

	red, err := f.engine.CompletePassword(ctx, sess.ID, "foo@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, ResponseModeFragment, red.Mode)
	assert.Contains(t, red.Location, "#")

	params := redirectParams(t, red)
	assert.Equal(t, "xyz", params.Get("state"))
	assert.Equal(t, "Bearer", params.Get("token_type"))
	assert.NotEmpty(t, params.Get("expires_in"))
	assert.Empty(t, params.Get("code"))

	claims, err := f.issuer.Parse(ctx, params.Get("access_token"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims["sub"])
	assert.Equal(t, "https://api.acme.test", claims["aud"])
	assert.Equal(t, "clientId", claims["azp"])

	idClaims, err := f.issuer.Parse(ctx, params.Get("id_token"))
	require.NoError(t, err)
	assert.Equal(t, "n-123", idClaims["nonce"])
	assert.Equal(t, "foo@example.com", idClaims["email"])
	assert.Equal(t, true, idClaims["email_verified"])
}

func TestCompleteEmailCode_SignsUpNewVerifiedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.start(t, AuthRequest{})
	code, err := f.engine.codes.Issue(ctx, "tenantId", "nuevo@example.com", repository.CodeTypeValidation)
	require.NoError(t, err)

	red, err := f.engine.CompleteEmailCode(ctx, sess.ID, "nuevo@example.com", code.Code)
	require.NoError(t, err)
	assert.NotNil(t, red)

	// Redimir el OTP probó posesión del email: usuario nuevo y verificado.
	user, err := f.store.Users().GetPrimaryByEmail(ctx, "tenantId", "nuevo@example.com")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, ProviderEmail, user.Provider)
}

func TestCompleteEmailCode_InvalidOTP(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t, AuthRequest{})

	_, err := f.engine.CompleteEmailCode(context.Background(), sess.ID, "x@example.com", "000000")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCompleteEmailCode_SignUpsDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Applications().Create(ctx, "tenantId", &repository.Application{
		ID: "closedApp", TenantID: "tenantId",
		AllowedCallbackURLs: []string{testCallback},
		DisableSignUps:      true,
	}))

	sess := f.start(t, AuthRequest{ClientID: "closedApp"})
	code, err := f.engine.codes.Issue(ctx, "tenantId", "nuevo@example.com", repository.CodeTypeValidation)
	require.NoError(t, err)

	_, err = f.engine.CompleteEmailCode(ctx, sess.ID, "nuevo@example.com", code.Code)
	assert.ErrorIs(t, err, ErrSignUpsDisabled)
}

func TestCompleteSocial_LinksVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	primary := f.seedUser(t, "foo@example.com")

	sess := f.start(t, AuthRequest{ResponseType: "token", Scope: "openid"})

	red, err := f.engine.CompleteSocial(ctx, sess.ID, repository.User{
		Email: "foo@example.com", EmailVerified: true,
		Provider: "google-oauth2", Connection: "google",
		Name: "Foo Bar",
	})
	require.NoError(t, err)

	// El sujeto del token es el primario, no la identidad federada nueva.
	params := redirectParams(t, red)
	claims, err := f.issuer.Parse(ctx, params.Get("access_token"))
	require.NoError(t, err)
	assert.Equal(t, primary.ID, claims["sub"])

	identities, err := f.store.Users().ListByEmail(ctx, "tenantId", "foo@example.com")
	require.NoError(t, err)
	assert.Len(t, identities, 2)
}

func TestSignUpPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.start(t, AuthRequest{State: "xyz"})
	red, err := f.engine.SignUpPassword(ctx, sess.ID, "alta@example.com", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, redirectParams(t, red).Get("code"))

	// El alta por password nunca deja el email verificado.
	us, err := f.store.Users().ListByEmail(ctx, "tenantId", "alta@example.com")
	require.NoError(t, err)
	require.Len(t, us, 1)
	assert.False(t, us[0].EmailVerified)

	// Email ya registrado: conflicto.
	sess2 := f.start(t, AuthRequest{})
	_, err = f.engine.SignUpPassword(ctx, sess2.ID, "alta@example.com", testPassword)
	assert.True(t, repository.IsConflict(err))
}

func TestSignUpPassword_EnforcedBlocksLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Applications().Create(ctx, "tenantId", &repository.Application{
		ID: "strictApp", TenantID: "tenantId",
		AllowedCallbackURLs: []string{testCallback},
		EmailValidation:     repository.EmailValidationEnforced,
	}))

	sess := f.start(t, AuthRequest{ClientID: "strictApp"})
	_, err := f.engine.SignUpPassword(ctx, sess.ID, "alta@example.com", testPassword)
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	// El usuario y su password quedaron creados; solo falta verificar.
	us, err := f.store.Users().ListByEmail(ctx, "tenantId", "alta@example.com")
	require.NoError(t, err)
	assert.Len(t, us, 1)
}
