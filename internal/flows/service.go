// Package flows orquesta los flujos por email: verificación de cuenta y
// reset de password. Emite el código, arma el correo con el branding del
// tenant y lo despacha por el Sender configurado.
package flows

import (
	"context"
	"time"

	"github.com/authrim/authrim/internal/codes"
	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/email"
	"github.com/authrim/authrim/internal/observability/logger"
	"github.com/authrim/authrim/internal/security/password"
)

// Deps contiene las dependencias del service.
type Deps struct {
	Tenants   repository.TenantRepository
	Users     repository.UserRepository
	Passwords repository.PasswordRepository
	Codes     *codes.Service
	Sender    email.Sender
}

// Service implementa los flujos de email.
type Service struct {
	tenants   repository.TenantRepository
	users     repository.UserRepository
	passwords repository.PasswordRepository
	codes     *codes.Service
	sender    email.Sender
}

// NewService crea el service.
func NewService(d Deps) *Service {
	return &Service{
		tenants:   d.Tenants,
		users:     d.Users,
		passwords: d.Passwords,
		codes:     d.Codes,
		sender:    d.Sender,
	}
}

// RequestVerification emite un código de verificación y lo envía por email.
// El código también sirve como OTP de login.
func (s *Service) RequestVerification(ctx context.Context, tenantID, addr string) error {
	code, err := s.codes.Issue(ctx, tenantID, addr, repository.CodeTypeValidation)
	if err != nil {
		return err
	}
	return s.send(ctx, tenantID, addr, code.Code, email.RenderVerification)
}

// VerifyEmail redime el código de verificación y marca verificadas todas las
// identidades email del address en el tenant.
func (s *Service) VerifyEmail(ctx context.Context, tenantID, addr, submitted string) error {
	if _, err := s.codes.Redeem(ctx, tenantID, addr, submitted, repository.CodeTypeValidation); err != nil {
		return err
	}
	us, err := s.users.ListByEmail(ctx, tenantID, addr)
	if err != nil {
		return err
	}
	verified := true
	for i := range us {
		if us[i].EmailVerified {
			continue
		}
		if err := s.users.Update(ctx, tenantID, us[i].ID, repository.UpdateUserInput{EmailVerified: &verified}); err != nil {
			return err
		}
	}
	return nil
}

// RequestPasswordReset emite un código de reset y lo envía por email.
// Si el email no corresponde a ningún usuario responde éxito igual: no
// filtramos qué cuentas existen.
func (s *Service) RequestPasswordReset(ctx context.Context, tenantID, addr string) error {
	if _, err := s.users.GetPrimaryByEmail(ctx, tenantID, addr); err != nil {
		if repository.IsNotFound(err) {
			logger.From(ctx).Info("password reset for unknown email, ignored",
				logger.TenantID(tenantID))
			return nil
		}
		return err
	}
	code, err := s.codes.Issue(ctx, tenantID, addr, repository.CodeTypePasswordReset)
	if err != nil {
		return err
	}
	return s.send(ctx, tenantID, addr, code.Code, email.RenderPasswordReset)
}

// ResetPassword redime el código de reset y reemplaza el password de la
// identidad email del usuario.
func (s *Service) ResetPassword(ctx context.Context, tenantID, addr, submitted, newPlain string) error {
	if newPlain == "" {
		return repository.ErrInvalidInput
	}
	if _, err := s.codes.Redeem(ctx, tenantID, addr, submitted, repository.CodeTypePasswordReset); err != nil {
		return err
	}

	us, err := s.users.ListByEmail(ctx, tenantID, addr)
	if err != nil {
		return err
	}
	var target *repository.User
	for i := range us {
		if us[i].Provider == "email" {
			target = &us[i]
			break
		}
	}
	if target == nil {
		return repository.ErrNotFound
	}

	hash, err := password.Hash(password.Default, newPlain)
	if err != nil {
		return err
	}
	if err := s.passwords.Update(ctx, tenantID, target.ID, hash); err != nil {
		if repository.IsNotFound(err) {
			return s.passwords.Create(ctx, tenantID, target.ID, hash)
		}
		return err
	}
	return nil
}

type renderFn func(*repository.Tenant, email.CodeVars) (string, string, string, error)

func (s *Service) send(ctx context.Context, tenantID, addr, code string, render renderFn) error {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	vars := email.CodeVars{
		Code:         code,
		Tenant:       tenant.Name,
		TTLMinutes:   int(codes.EmailCodeTTL / time.Minute),
		LogoURL:      tenant.LogoURL,
		PrimaryColor: tenant.PrimaryColor,
		SupportURL:   tenant.SupportURL,
	}
	subject, html, text, err := render(tenant, vars)
	if err != nil {
		return err
	}
	from := tenant.SenderEmail
	if tenant.SenderName != "" {
		from = tenant.SenderName + " <" + tenant.SenderEmail + ">"
	}
	if err := s.sender.Send(from, addr, subject, html, text); err != nil {
		logger.From(ctx).Error("email dispatch failed", logger.TenantID(tenantID), logger.Err(err))
		return err
	}
	return nil
}
