package codes

import (
	"context"
	"testing"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_EmailCode(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New().Codes())

	code, err := svc.Issue(ctx, "tenantId", "foo@example.com", repository.CodeTypeValidation)
	require.NoError(t, err)
	assert.Len(t, code.Code, 6)
	assert.Regexp(t, `^\d{6}$`, code.Code)
	assert.WithinDuration(t, time.Now().Add(EmailCodeTTL), code.ExpiresAt, 5*time.Second)
}

func TestIssue_RejectsAuthorizationType(t *testing.T) {
	svc := NewService(memory.New().Codes())
	_, err := svc.Issue(context.Background(), "tenantId", "foo@example.com", repository.CodeTypeAuthorization)
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestRedeem_HappyPathThenReplay(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New().Codes())

	code, err := svc.Issue(ctx, "tenantId", "foo@example.com", repository.CodeTypeValidation)
	require.NoError(t, err)

	redeemed, err := svc.Redeem(ctx, "tenantId", "foo@example.com", code.Code, repository.CodeTypeValidation)
	require.NoError(t, err)
	assert.NotNil(t, redeemed.UsedAt)

	// Replay: el mismo valor ya no redime.
	_, err = svc.Redeem(ctx, "tenantId", "foo@example.com", code.Code, repository.CodeTypeValidation)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestRedeem_WrongValueOrEmptyOrWrongType(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New().Codes())

	code, err := svc.Issue(ctx, "tenantId", "foo@example.com", repository.CodeTypeValidation)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "tenantId", "foo@example.com", "000000", repository.CodeTypeValidation)
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = svc.Redeem(ctx, "tenantId", "foo@example.com", "", repository.CodeTypeValidation)
	assert.ErrorIs(t, err, ErrInvalidCode)

	// Mismo valor pero tipo password_reset: no cruza tipos.
	_, err = svc.Redeem(ctx, "tenantId", "foo@example.com", code.Code, repository.CodeTypePasswordReset)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestRedeem_Expired(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New().Codes())

	base := time.Now().UTC()
	svc.now = func() time.Time { return base }
	code, err := svc.Issue(ctx, "tenantId", "foo@example.com", repository.CodeTypeValidation)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(EmailCodeTTL + time.Minute) }
	_, err = svc.Redeem(ctx, "tenantId", "foo@example.com", code.Code, repository.CodeTypeValidation)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestAuthorizationCode_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New().Codes())

	user := &repository.User{ID: "u1", TenantID: "tenantId", Email: "foo@example.com"}
	code, err := svc.IssueAuthorization(ctx, "tenantId", user, "sess1")
	require.NoError(t, err)
	assert.NotEmpty(t, code.Code)
	assert.Equal(t, "u1", code.UserID)
	assert.Equal(t, "sess1", code.SessionID)
	assert.WithinDuration(t, time.Now().Add(AuthCodeTTL), code.ExpiresAt, 5*time.Second)

	redeemed, err := svc.RedeemAuthorization(ctx, "tenantId", code.Code)
	require.NoError(t, err)
	assert.Equal(t, "u1", redeemed.UserID)

	// Un authorization code es estrictamente single-use.
	_, err = svc.RedeemAuthorization(ctx, "tenantId", code.Code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestRedeemAuthorization_UnknownValue(t *testing.T) {
	svc := NewService(memory.New().Codes())
	_, err := svc.RedeemAuthorization(context.Background(), "tenantId", "no-such-code")
	assert.ErrorIs(t, err, ErrInvalidCode)
}
