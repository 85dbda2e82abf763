package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, "15m", c.JWT.AccessTTL)
	assert.Equal(t, "30m", c.Authorize.SessionTTL)
	assert.Equal(t, "auto", c.SMTP.TLS)
	assert.Equal(t, 16, c.Hooks.MaxInflight)
	assert.Equal(t, 10, c.Rate.Login.Limit)
	assert.Equal(t, 5, c.Rate.Forgot.Limit)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  app_env: dev
server:
  addr: ":9090"
jwt:
  issuer: http://localhost:9090
  access_ttl: 5m
cache:
  kind: redis
  redis:
    addr: localhost:6379
    prefix: "authrim:"
rate:
  enabled: true
  login:
    limit: 3
    window: 30s
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "http://localhost:9090", c.JWT.Issuer)
	assert.Equal(t, "5m", c.JWT.AccessTTL)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, "authrim:", c.Cache.Redis.Prefix)
	assert.True(t, c.Rate.Enabled)
	assert.Equal(t, 3, c.Rate.Login.Limit)
	assert.Equal(t, "30s", c.Rate.Login.Window)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("JWT_ISSUER", "http://env-issuer")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	path := writeConfig(t, `
server:
  addr: ":9090"
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", c.Server.Addr)
	assert.Equal(t, "http://env-issuer", c.JWT.Issuer)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.Server.CORSAllowedOrigins)
}

func TestLoad_RedisKindRequiresAddr(t *testing.T) {
	path := writeConfig(t, `
cache:
  kind: redis
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
jwt:
  access_ttl: quince
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_UnknownCacheKind(t *testing.T) {
	path := writeConfig(t, `
cache:
  kind: memcached
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ProdRequiresIssuer(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_ProdForcesTLSVerify(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_ISSUER", "https://id.acme.test")
	t.Setenv("SMTP_INSECURE_SKIP_VERIFY", "true")

	c, err := Load("")
	require.NoError(t, err)
	assert.False(t, c.SMTP.InsecureSkipVerify, "prod nunca salta verificación TLS")
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, Duration("5m", time.Second))
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("basura", time.Second))
}
