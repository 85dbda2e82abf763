// Package token implementa el token endpoint: intercambio de authorization
// code por tokens y el grant password (ROPC).
package token

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/authrim/authrim/internal/audit"
	"github.com/authrim/authrim/internal/codes"
	"github.com/authrim/authrim/internal/domain/repository"
	jwtx "github.com/authrim/authrim/internal/jwt"
	"github.com/authrim/authrim/internal/observability/logger"
	tokens "github.com/authrim/authrim/internal/security/token"
)

// Errores del endpoint, mapeables 1:1 a la taxonomía OAuth2.
var (
	ErrInvalidRequest       = errors.New("token: invalid_request")
	ErrInvalidClient        = errors.New("token: invalid_client")
	ErrInvalidGrant         = errors.New("token: invalid_grant")
	ErrUnsupportedGrantType = errors.New("token: unsupported_grant_type")
)

// Grant types soportados.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantPassword          = "password"
)

// Request son los parámetros del POST al token endpoint.
type Request struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string

	// Grant password.
	Username string
	Password string
	Scope    string
}

// Response es el cuerpo de respuesta del token endpoint.
type Response struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	IDToken     string `json:"id_token,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// Deps contiene las dependencias del service.
type Deps struct {
	Apps      repository.ApplicationRepository
	Users     repository.UserRepository
	Passwords repository.PasswordRepository
	Sessions  repository.SessionRepository
	Codes     *codes.Service
	Issuer    *jwtx.Issuer
	Trail     *audit.Trail
}

// Service resuelve grants contra el storage del tenant.
type Service struct {
	apps      repository.ApplicationRepository
	users     repository.UserRepository
	passwords repository.PasswordRepository
	sessions  repository.SessionRepository
	codes     *codes.Service
	issuer    *jwtx.Issuer
	trail     *audit.Trail
	now       func() time.Time
}

// NewService crea el service.
func NewService(d Deps) *Service {
	return &Service{
		apps:      d.Apps,
		users:     d.Users,
		passwords: d.Passwords,
		sessions:  d.Sessions,
		codes:     d.Codes,
		issuer:    d.Issuer,
		trail:     d.Trail,
		now:       time.Now,
	}
}

// Grant despacha por grant_type.
func (s *Service) Grant(ctx context.Context, req Request) (*Response, error) {
	switch req.GrantType {
	case GrantAuthorizationCode:
		return s.exchangeCode(ctx, req)
	case GrantPassword:
		return s.passwordGrant(ctx, req)
	case "":
		return nil, ErrInvalidRequest
	default:
		return nil, ErrUnsupportedGrantType
	}
}

// exchangeCode canjea un authorization code de un solo uso por tokens.
// Cualquier inconsistencia entre el request y la sesión capturada en
// /authorize (client, redirect_uri, PKCE) es invalid_grant: el code
// ya quedó consumido y no se puede reintentar.
func (s *Service) exchangeCode(ctx context.Context, req Request) (*Response, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.exchange"),
		logger.ClientID(req.ClientID))

	if req.Code == "" || req.ClientID == "" || req.RedirectURI == "" {
		return nil, ErrInvalidRequest
	}

	info, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	code, err := s.codes.RedeemAuthorization(ctx, info.TenantID, req.Code)
	if err != nil {
		if err == codes.ErrInvalidCode {
			s.failExchange(ctx, info, "", "code_invalid_or_used")
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, code.SessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			s.failExchange(ctx, info, code.UserID, "session_gone")
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if sess.ClientID != req.ClientID {
		s.failExchange(ctx, info, code.UserID, "client_mismatch")
		return nil, ErrInvalidGrant
	}
	if sess.AuthParams.RedirectURI != req.RedirectURI {
		s.failExchange(ctx, info, code.UserID, "redirect_uri_mismatch")
		return nil, ErrInvalidGrant
	}
	if err := verifyPKCE(sess.AuthParams.CodeChallenge, sess.AuthParams.CodeChallengeMethod, req.CodeVerifier); err != nil {
		s.failExchange(ctx, info, code.UserID, "pkce_failed")
		return nil, ErrInvalidGrant
	}

	user, err := s.loadUser(ctx, info.TenantID, code.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			s.failExchange(ctx, info, code.UserID, "user_gone")
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	resp, err := s.issue(ctx, info, user, sess.AuthParams.Scope, sess.AuthParams.Nonce)
	if err != nil {
		return nil, err
	}
	s.trail.Record(ctx, audit.Event{
		TenantID: info.TenantID,
		Type:     audit.SuccessExchangeAuthCodeForAT,
		UserID:   user.ID,
		ClientID: info.ID,
	})
	log.Info("code exchanged", logger.TenantID(info.TenantID), logger.UserID(user.ID))
	return resp, nil
}

// passwordGrant autentica email+password directamente contra el token
// endpoint. Pensado para clients confidenciales de primera parte.
func (s *Service) passwordGrant(ctx context.Context, req Request) (*Response, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("token.password"),
		logger.ClientID(req.ClientID))

	if req.Username == "" || req.Password == "" || req.ClientID == "" {
		return nil, ErrInvalidRequest
	}

	info, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.findEmailUser(ctx, info.TenantID, req.Username)
	if err != nil {
		if repository.IsNotFound(err) {
			s.failLogin(ctx, info, "")
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	ok, err := s.passwords.Validate(ctx, info.TenantID, user.ID, req.Password)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	if err != nil || !ok {
		s.failLogin(ctx, info, user.ID)
		return nil, ErrInvalidGrant
	}
	if info.EmailValidation == repository.EmailValidationEnforced && !user.EmailVerified {
		s.failExchange(ctx, info, user.ID, "email_not_verified")
		return nil, ErrInvalidGrant
	}

	if user.LinkedTo != nil {
		user, err = s.users.Get(ctx, info.TenantID, *user.LinkedTo)
		if err != nil {
			return nil, err
		}
	}

	resp, err := s.issue(ctx, info, user, req.Scope, "")
	if err != nil {
		return nil, err
	}
	s.trail.Record(ctx, audit.Event{
		TenantID:   info.TenantID,
		Type:       audit.SuccessLogin,
		UserID:     user.ID,
		ClientID:   info.ID,
		Connection: "email",
		Details:    map[string]any{"amr": "pwd", "grant": GrantPassword},
	})
	log.Info("password grant", logger.TenantID(info.TenantID), logger.UserID(user.ID))
	return resp, nil
}

// authenticateClient carga la application y valida el secret si lo presenta
// o si la application lo exige.
func (s *Service) authenticateClient(ctx context.Context, clientID, clientSecret string) (*repository.ApplicationInfo, error) {
	info, err := s.apps.Get(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if info.ClientSecret != "" || clientSecret != "" {
		if subtle.ConstantTimeCompare([]byte(info.ClientSecret), []byte(clientSecret)) != 1 {
			return nil, ErrInvalidClient
		}
	}
	return info, nil
}

func (s *Service) issue(ctx context.Context, info *repository.ApplicationInfo, user *repository.User, scope, nonce string) (*Response, error) {
	aud := info.ID
	if info.Tenant.Audience != "" {
		aud = info.Tenant.Audience
	}
	access, exp, err := s.issuer.IssueAccess(ctx, user.ID, aud, map[string]any{
		"azp":   info.ID,
		"tid":   info.TenantID,
		"scope": scope,
	})
	if err != nil {
		return nil, err
	}
	resp := &Response{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
		Scope:       scope,
	}
	if hasScope(scope, "openid") {
		claims := map[string]any{"azp": info.ID}
		if nonce != "" {
			claims["nonce"] = nonce
		}
		if hasScope(scope, "email") {
			claims["email"] = user.Email
			claims["email_verified"] = user.EmailVerified
		}
		if hasScope(scope, "profile") && user.Name != "" {
			claims["name"] = user.Name
		}
		idt, _, err := s.issuer.IssueIDToken(ctx, user.ID, info.ID, claims)
		if err != nil {
			return nil, err
		}
		resp.IDToken = idt
	}
	return resp, nil
}

func (s *Service) loadUser(ctx context.Context, tenantID, userID string) (*repository.User, error) {
	user, err := s.users.Get(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if user.LinkedTo != nil {
		return s.users.Get(ctx, tenantID, *user.LinkedTo)
	}
	return user, nil
}

func (s *Service) findEmailUser(ctx context.Context, tenantID, email string) (*repository.User, error) {
	us, err := s.users.ListByEmail(ctx, tenantID, email)
	if err != nil {
		return nil, err
	}
	for i := range us {
		if us[i].Provider == "email" {
			out := us[i]
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Service) failExchange(ctx context.Context, info *repository.ApplicationInfo, userID, reason string) {
	s.trail.Record(ctx, audit.Event{
		TenantID: info.TenantID,
		Type:     audit.FailedExchange,
		UserID:   userID,
		ClientID: info.ID,
		Details:  map[string]any{"reason": reason},
	})
}

func (s *Service) failLogin(ctx context.Context, info *repository.ApplicationInfo, userID string) {
	s.trail.Record(ctx, audit.Event{
		TenantID:   info.TenantID,
		Type:       audit.FailedLoginIncorrectPassword,
		UserID:     userID,
		ClientID:   info.ID,
		Connection: "email",
	})
}

// verifyPKCE valida el code_verifier contra el challenge capturado en
// /authorize. Sin challenge no se exige verifier.
func verifyPKCE(challenge, method, verifier string) error {
	if challenge == "" {
		return nil
	}
	if verifier == "" {
		return ErrInvalidGrant
	}
	var derived string
	switch method {
	case "", "S256":
		derived = tokens.SHA256Base64URL(verifier)
	case "plain":
		derived = verifier
	default:
		return ErrInvalidGrant
	}
	if subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) != 1 {
		return ErrInvalidGrant
	}
	return nil
}

func hasScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}
