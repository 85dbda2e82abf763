package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/authrim/authrim/internal/domain/repository"
	memstore "github.com/authrim/authrim/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
tenants:
  - id: tenantId
    name: Acme
    audience: https://api.acme.test
    sender_email: no-reply@acme.test
    language: es
    applications:
      - client_id: clientId
        name: Dashboard
        client_secret: s3cr3t
        callback_urls:
          - http://localhost:3000/callback
        email_validation: enforced
    connections:
      - name: google-oauth2
        client_id: g-client
        client_secret: g-secret
        authorization_endpoint: https://accounts.google.test/auth
        token_endpoint: https://oauth2.google.test/token
    hooks:
      - url: http://hooks.acme.test/login
        trigger: post-user-login
      - url: http://hooks.acme.test/off
        trigger: post-user-login
        enabled: false
    users:
      - email: foo@example.com
        password: Test1234!
        email_verified: true
        name: Foo
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSeed(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, LoadSeed(ctx, st, writeSeed(t, seedYAML)))

	tenant, err := st.Tenants().Get(ctx, "tenantId")
	require.NoError(t, err)
	assert.Equal(t, "Acme", tenant.Name)
	assert.Equal(t, "es", tenant.Language)

	info, err := st.Applications().Get(ctx, "clientId")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", info.ClientSecret)
	assert.Equal(t, repository.EmailValidationEnforced, info.EmailValidation)
	assert.True(t, info.CallbackAllowed("http://localhost:3000/callback"))
	require.Len(t, info.Connections, 1)
	assert.Equal(t, "google-oauth2", info.Connections[0].Name)

	// Sólo los hooks habilitados quedan activos.
	hks, err := st.Hooks().List(ctx, "tenantId", repository.TriggerPostUserLogin)
	require.NoError(t, err)
	require.Len(t, hks, 1)
	assert.Equal(t, "http://hooks.acme.test/login", hks[0].URL)

	user, err := st.Users().GetPrimaryByEmail(ctx, "tenantId", "foo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "email", user.Provider)

	ok, err := st.Passwords().Validate(ctx, "tenantId", user.ID, "Test1234!")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadSeed_DefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, LoadSeed(ctx, st, writeSeed(t, `
tenants:
  - name: SinIDs
    applications:
      - name: App
        email_validation: cualquier-cosa
`)))

	tenants, err := st.Tenants().List(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.NotEmpty(t, tenants[0].ID, "tenant sin id recibe uuid")
}

func TestEmailValidationDefault(t *testing.T) {
	assert.Equal(t, repository.EmailValidationEnabled, emailValidation(""))
	assert.Equal(t, repository.EmailValidationEnabled, emailValidation("cualquier-cosa"))
	assert.Equal(t, repository.EmailValidationEnforced, emailValidation("enforced"))
	assert.Equal(t, repository.EmailValidationDisabled, emailValidation("disabled"))
}

func TestLoadSeed_MissingFile(t *testing.T) {
	err := LoadSeed(context.Background(), memstore.New(), "/no/existe/seed.yaml")
	assert.Error(t, err)
}

func TestLoadSeed_InvalidYAML(t *testing.T) {
	err := LoadSeed(context.Background(), memstore.New(), writeSeed(t, "tenants: ["))
	assert.Error(t, err)
}
