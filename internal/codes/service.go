// Package codes implementa el ciclo de vida de one-time codes: emisión y
// redención single-use de authorization codes, códigos de verificación de
// email y OTPs de password reset.
package codes

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/observability/logger"
	tokens "github.com/authrim/authrim/internal/security/token"
	"github.com/google/uuid"
)

// ErrInvalidCode cubre toda redención fallida: code inexistente, valor que no
// coincide, expirado o ya usado. Deliberadamente indistinguibles para el caller.
var ErrInvalidCode = errors.New("invalid_code")

const (
	EmailCodeTTL = 30 * time.Minute // validation y password_reset
	AuthCodeTTL  = 5 * time.Minute  // authorization codes
	otpDigits    = 6
	opaqueBytes  = 32
)

// Service emite y redime one-time codes.
type Service struct {
	repo repository.CodeRepository
	now  func() time.Time
}

// NewService crea el Code Service.
func NewService(repo repository.CodeRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Issue emite un código de email (validation o password_reset) de 6 dígitos
// con TTL de 30 minutos.
func (s *Service) Issue(ctx context.Context, tenantID, email string, typ repository.CodeType) (*repository.Code, error) {
	if typ == repository.CodeTypeAuthorization {
		return nil, repository.ErrInvalidInput
	}
	value, err := tokens.GenerateOTP(otpDigits)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, &repository.Code{
		TenantID:  tenantID,
		Email:     email,
		Code:      value,
		Type:      typ,
		ExpiresAt: s.now().UTC().Add(EmailCodeTTL),
	})
}

// IssueAuthorization emite un authorization code opaco atado al usuario
// autenticado y a su sesión de login (TTL 5 minutos).
func (s *Service) IssueAuthorization(ctx context.Context, tenantID string, user *repository.User, sessionID string) (*repository.Code, error) {
	value, err := tokens.GenerateOpaqueToken(opaqueBytes)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, &repository.Code{
		TenantID:  tenantID,
		Email:     user.Email,
		Code:      value,
		Type:      repository.CodeTypeAuthorization,
		UserID:    user.ID,
		SessionID: sessionID,
		ExpiresAt: s.now().UTC().Add(AuthCodeTTL),
	})
}

// Redeem busca entre los codes vigentes de (tenant, email, type) uno cuyo
// valor coincida y lo marca usado. El check-and-set final es atómico en el
// repositorio: bajo redención concurrente exactamente una llamada gana.
func (s *Service) Redeem(ctx context.Context, tenantID, email, submitted string, typ repository.CodeType) (*repository.Code, error) {
	if submitted == "" {
		return nil, ErrInvalidCode
	}
	list, err := s.repo.List(ctx, tenantID, email, typ)
	if err != nil {
		return nil, err
	}
	for i := range list {
		c := list[i]
		if subtle.ConstantTimeCompare([]byte(c.Code), []byte(submitted)) != 1 {
			continue
		}
		return s.consume(ctx, &c)
	}
	logger.From(ctx).Debug("code redemption failed, no match",
		logger.TenantID(tenantID), logger.Email(email), logger.String("type", string(typ)))
	return nil, ErrInvalidCode
}

// RedeemAuthorization redime un authorization code por su valor.
func (s *Service) RedeemAuthorization(ctx context.Context, tenantID, submitted string) (*repository.Code, error) {
	if submitted == "" {
		return nil, ErrInvalidCode
	}
	c, err := s.repo.FindByValue(ctx, tenantID, submitted, repository.CodeTypeAuthorization)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	return s.consume(ctx, c)
}

func (s *Service) create(ctx context.Context, c *repository.Code) (*repository.Code, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = s.now().UTC()
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// consume valida expiración/uso y ejecuta el Use atómico.
func (s *Service) consume(ctx context.Context, c *repository.Code) (*repository.Code, error) {
	now := s.now().UTC()
	if c.UsedAt != nil || c.Expired(now) {
		return nil, ErrInvalidCode
	}
	err := s.repo.Use(ctx, c.TenantID, c.ID, now)
	if err != nil {
		if errors.Is(err, repository.ErrCodeUsed) || repository.IsNotFound(err) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	c.UsedAt = &now
	return c, nil
}
