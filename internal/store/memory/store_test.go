package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTenant(t *testing.T, s *Store) *repository.Tenant {
	t.Helper()
	tenant := &repository.Tenant{ID: "tenantId", Name: "Acme", Audience: "https://api.acme.test"}
	require.NoError(t, s.Tenants().Create(context.Background(), tenant))
	return tenant
}

func TestCodeUse_SingleUseSequential(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTenant(t, s)

	code := &repository.Code{
		ID:        "c1",
		TenantID:  "tenantId",
		Email:     "foo@example.com",
		Code:      "123456",
		Type:      repository.CodeTypeValidation,
		ExpiresAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, s.Codes().Create(ctx, code))

	now := time.Now().UTC()
	require.NoError(t, s.Codes().Use(ctx, "tenantId", "c1", now))

	err := s.Codes().Use(ctx, "tenantId", "c1", now)
	assert.ErrorIs(t, err, repository.ErrCodeUsed)
}

func TestCodeUse_SingleUseConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTenant(t, s)

	code := &repository.Code{
		ID:        "c1",
		TenantID:  "tenantId",
		Email:     "foo@example.com",
		Code:      "123456",
		Type:      repository.CodeTypeAuthorization,
		ExpiresAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, s.Codes().Create(ctx, code))

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Codes().Use(ctx, "tenantId", "c1", time.Now().UTC()); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactamente una redención concurrente debe ganar")
}

func TestSessionUse_SingleUse(t *testing.T) {
	ctx := context.Background()
	s := New()

	sess := &repository.Session{
		ID:        "s1",
		TenantID:  "tenantId",
		ClientID:  "clientId",
		ExpiresAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, s.Sessions().Create(ctx, sess))

	require.NoError(t, s.Sessions().Use(ctx, "s1", time.Now().UTC()))
	err := s.Sessions().Use(ctx, "s1", time.Now().UTC())
	assert.ErrorIs(t, err, repository.ErrSessionUsed)

	got, err := s.Sessions().Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, got.UsedAt)
}

func TestUserCreate_UniqueVerifiedPrimary(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTenant(t, s)

	u1 := &repository.User{
		ID: "u1", TenantID: "tenantId", Email: "foo@example.com",
		EmailVerified: true, Provider: "email", Connection: "email",
	}
	require.NoError(t, s.Users().Create(ctx, u1))

	u2 := &repository.User{
		ID: "u2", TenantID: "tenantId", Email: "foo@example.com",
		EmailVerified: true, Provider: "google", Connection: "google",
	}
	err := s.Users().Create(ctx, u2)
	assert.True(t, repository.IsConflict(err), "segundo primario verificado con el mismo email debe chocar")

	// Un secundario linkeado sí puede crearse.
	link := "u1"
	u2.LinkedTo = &link
	require.NoError(t, s.Users().Create(ctx, u2))

	primary, err := s.Users().GetPrimaryByEmail(ctx, "tenantId", "foo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", primary.ID)
}

func TestUserCreate_UnverifiedDoesNotClaimPrimary(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTenant(t, s)

	u1 := &repository.User{
		ID: "u1", TenantID: "tenantId", Email: "foo@example.com",
		EmailVerified: false, Provider: "email", Connection: "email",
	}
	require.NoError(t, s.Users().Create(ctx, u1))

	_, err := s.Users().GetPrimaryByEmail(ctx, "tenantId", "foo@example.com")
	assert.True(t, repository.IsNotFound(err))

	// Otro usuario no verificado con el mismo email tampoco choca.
	u2 := &repository.User{
		ID: "u2", TenantID: "tenantId", Email: "foo@example.com",
		EmailVerified: false, Provider: "github", Connection: "github",
	}
	require.NoError(t, s.Users().Create(ctx, u2))
}

func TestApplicationGet_JoinsTenantAndConnections(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenant := seedTenant(t, s)

	app := &repository.Application{
		ID:                  "clientId",
		TenantID:            tenant.ID,
		Name:                "Dashboard",
		AllowedCallbackURLs: []string{"http://localhost:3000/callback"},
	}
	require.NoError(t, s.Applications().Create(ctx, tenant.ID, app))
	require.NoError(t, s.Connections().Create(ctx, tenant.ID, &repository.Connection{
		ID: "conn1", TenantID: tenant.ID, Name: "google",
	}))

	info, err := s.Applications().Get(ctx, "clientId")
	require.NoError(t, err)
	assert.Equal(t, "Acme", info.Tenant.Name)
	require.Len(t, info.Connections, 1)
	assert.Equal(t, "google", info.Connections[0].Name)

	assert.True(t, info.CallbackAllowed("http://localhost:3000/callback"))
	assert.False(t, info.CallbackAllowed("http://localhost:3000/callback/"))
	assert.False(t, info.CallbackAllowed("https://evil.test/callback"))

	conn, err := s.Connections().GetByName(ctx, tenant.ID, "google")
	require.NoError(t, err)
	assert.Equal(t, "conn1", conn.ID)
	_, err = s.Connections().GetByName(ctx, tenant.ID, "github")
	assert.True(t, repository.IsNotFound(err))
}

func TestLogs_ListNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	base := time.Now().UTC()
	for i, typ := range []string{"SUCCESS_LOGIN", "FAILED_EXCHANGE", "SUCCESS_LOGIN"} {
		require.NoError(t, s.Logs().Create(ctx, &repository.LogEntry{
			ID: string(rune('a' + i)), TenantID: "tenantId", Type: typ,
			Date: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := s.Logs().List(ctx, "tenantId", repository.ListLogsFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Date.After(all[2].Date))

	logins, err := s.Logs().List(ctx, "tenantId", repository.ListLogsFilter{Type: "SUCCESS_LOGIN"})
	require.NoError(t, err)
	assert.Len(t, logins, 2)
}
