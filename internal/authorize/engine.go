// Package authorize implementa la máquina de estados del authorization
// request: validación, sesión de login pendiente, autenticación (password,
// OTP, social) y emisión de code o tokens con redirect.
package authorize

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/authrim/authrim/internal/audit"
	"github.com/authrim/authrim/internal/cache"
	"github.com/authrim/authrim/internal/codes"
	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/hooks"
	"github.com/authrim/authrim/internal/identity"
	jwtx "github.com/authrim/authrim/internal/jwt"
	"github.com/authrim/authrim/internal/observability/logger"
	"github.com/authrim/authrim/internal/security/password"
	"github.com/authrim/authrim/internal/util"
	"github.com/authrim/authrim/internal/validation"
	"github.com/google/uuid"
)

// Provider/connection del login por email (password y OTP).
const (
	ProviderEmail   = "email"
	ConnectionEmail = "email"
)

const (
	defaultSessionTTL = 30 * time.Minute
	appCacheTTL       = 30 * time.Second
)

// AuthRequest son los parámetros crudos de /authorize.
type AuthRequest struct {
	ClientID            string
	ResponseType        string
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	ResponseMode        string
}

// Deps contiene las dependencias del engine.
type Deps struct {
	Apps      repository.ApplicationRepository
	Users     repository.UserRepository
	Passwords repository.PasswordRepository
	Sessions  repository.SessionRepository
	Codes     *codes.Service
	Issuer    *jwtx.Issuer
	Resolver  *identity.Resolver
	Hooks     *hooks.Dispatcher
	Trail     *audit.Trail
	Cache     cache.Cache // opcional: cachea lookups de application

	SessionTTL time.Duration
}

// Engine valida authorization requests y conduce el flujo login → redirect.
type Engine struct {
	apps      repository.ApplicationRepository
	users     repository.UserRepository
	passwords repository.PasswordRepository
	sessions  repository.SessionRepository
	codes     *codes.Service
	issuer    *jwtx.Issuer
	resolver  *identity.Resolver
	hooks     *hooks.Dispatcher
	trail     *audit.Trail
	cache     cache.Cache

	sessionTTL time.Duration
	now        func() time.Time
}

// NewEngine crea el engine.
func NewEngine(d Deps) *Engine {
	ttl := d.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Engine{
		apps:       d.Apps,
		users:      d.Users,
		passwords:  d.Passwords,
		sessions:   d.Sessions,
		codes:      d.Codes,
		issuer:     d.Issuer,
		resolver:   d.Resolver,
		hooks:      d.Hooks,
		trail:      d.Trail,
		cache:      d.Cache,
		sessionTTL: ttl,
		now:        time.Now,
	}
}

// Start valida el request y persiste la sesión de login (estado Pending).
// Cualquier fallo de validación se reporta SIN crear sesión y SIN redirigir
// a la redirect_uri no verificada.
func (e *Engine) Start(ctx context.Context, req AuthRequest) (*repository.Session, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("authorize.start"),
		logger.ClientID(req.ClientID))

	if req.ClientID == "" || req.RedirectURI == "" || req.ResponseType == "" {
		return nil, ErrInvalidRequest
	}
	if !validResponseType(req.ResponseType) {
		return nil, ErrInvalidRequest
	}
	// Scopes malformados se descartan, no abortan el request.
	req.Scope = validation.FilterScopes(req.Scope)

	info, err := e.lookupApp(ctx, req.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("unknown client")
			return nil, ErrUnauthorizedClient
		}
		return nil, err
	}

	// Allowlist: match exacto, sin normalización.
	if !info.CallbackAllowed(req.RedirectURI) {
		log.Warn("redirect_uri not in allowlist", logger.String("redirect_uri", req.RedirectURI))
		e.trail.Record(ctx, audit.Event{
			TenantID: info.TenantID,
			Type:     audit.FailedAuthorizationRequest,
			ClientID: info.ID,
			Details:  map[string]any{"reason": "redirect_uri_mismatch", "redirect_uri": req.RedirectURI},
		})
		return nil, ErrUnauthorizedClient
	}

	sess := &repository.Session{
		ID:       uuid.NewString(),
		TenantID: info.TenantID,
		ClientID: info.ID,
		AuthParams: repository.AuthParams{
			ResponseType:        req.ResponseType,
			ResponseMode:        req.ResponseMode,
			RedirectURI:         req.RedirectURI,
			Scope:               req.Scope,
			State:               req.State,
			Nonce:               req.Nonce,
			CodeChallenge:       req.CodeChallenge,
			CodeChallengeMethod: req.CodeChallengeMethod,
		},
		CreatedAt: e.now().UTC(),
		ExpiresAt: e.now().UTC().Add(e.sessionTTL),
	}
	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	log.Info("authorization session created", logger.SessionID(sess.ID), logger.TenantID(sess.TenantID))
	return sess, nil
}

// CompletePassword autentica la sesión con email+password.
func (e *Engine) CompletePassword(ctx context.Context, sessionID, email, plain string) (*Redirect, error) {
	sess, info, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := e.findEmailUser(ctx, sess.TenantID, email)
	if err != nil {
		if repository.IsNotFound(err) {
			// Mismo error que password incorrecto: no filtramos existencia.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := e.passwords.Validate(ctx, sess.TenantID, user.ID, plain)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	if err != nil || !ok {
		logger.From(ctx).Warn("password mismatch",
			logger.TenantID(sess.TenantID), logger.Email(util.MaskEmail(email)))
		e.trail.Record(ctx, audit.Event{
			TenantID:   sess.TenantID,
			Type:       audit.FailedLoginIncorrectPassword,
			UserID:     user.ID,
			ClientID:   sess.ClientID,
			Connection: ConnectionEmail,
		})
		return nil, ErrInvalidCredentials
	}

	if info.EmailValidation == repository.EmailValidationEnforced && !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	user, err = e.canonical(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, sess, info, user, "pwd")
}

// CompleteEmailCode autentica la sesión redimiendo un OTP de email. Redimir
// el código prueba posesión del email, así que la identidad queda verificada
// y puede crear usuario nuevo (si la application acepta sign-ups).
func (e *Engine) CompleteEmailCode(ctx context.Context, sessionID, email, otp string) (*Redirect, error) {
	sess, info, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := e.codes.Redeem(ctx, sess.TenantID, email, otp, repository.CodeTypeValidation); err != nil {
		if err == codes.ErrInvalidCode {
			e.trail.Record(ctx, audit.Event{
				TenantID:   sess.TenantID,
				Type:       audit.FailedLoginInvalidCode,
				ClientID:   sess.ClientID,
				Connection: ConnectionEmail,
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	user, err := e.findEmailUser(ctx, sess.TenantID, email)
	switch {
	case err == nil:
		// El OTP verificó el email; persistirlo si aún no estaba.
		if !user.EmailVerified {
			verified := true
			if uerr := e.users.Update(ctx, sess.TenantID, user.ID, repository.UpdateUserInput{EmailVerified: &verified}); uerr == nil {
				user.EmailVerified = true
			}
		}
	case repository.IsNotFound(err):
		if info.DisableSignUps {
			return nil, ErrSignUpsDisabled
		}
		user, err = e.resolver.Resolve(ctx, &repository.User{
			TenantID:      sess.TenantID,
			Email:         email,
			EmailVerified: true,
			Provider:      ProviderEmail,
			Connection:    ConnectionEmail,
		})
		if err != nil {
			return nil, err
		}
		e.trail.Record(ctx, audit.Event{
			TenantID:   sess.TenantID,
			Type:       audit.SuccessSignup,
			UserID:     user.ID,
			ClientID:   sess.ClientID,
			Connection: ConnectionEmail,
		})
	default:
		return nil, err
	}

	user, err = e.canonical(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, sess, info, user, "otp")
}

// CompleteSocial autentica la sesión con una identidad ya validada por un
// provider federado (el callback OAuth externo ya ocurrió). La identidad
// pasa por el Resolver: linking por email verificado.
func (e *Engine) CompleteSocial(ctx context.Context, sessionID string, candidate repository.User) (*Redirect, error) {
	sess, info, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	candidate.TenantID = sess.TenantID

	// Identidad exacta ya conocida: no se re-crea ni re-linkea.
	user, err := e.findExisting(ctx, sess.TenantID, &candidate)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	if user == nil {
		if info.DisableSignUps {
			return nil, ErrSignUpsDisabled
		}
		user, err = e.resolver.Resolve(ctx, &candidate)
		if err != nil {
			return nil, err
		}
	}

	user, err = e.canonical(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, sess, info, user, "federated")
}

// SignUpPassword registra un usuario con password bajo la application de la
// sesión y, si la política lo permite, completa el login.
func (e *Engine) SignUpPassword(ctx context.Context, sessionID, email, plain string) (*Redirect, error) {
	sess, info, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if info.DisableSignUps {
		return nil, ErrSignUpsDisabled
	}
	if email == "" || plain == "" {
		return nil, ErrInvalidRequest
	}
	if _, err := e.findEmailUser(ctx, sess.TenantID, email); err == nil {
		return nil, repository.ErrConflict
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	user, err := e.resolver.Resolve(ctx, &repository.User{
		TenantID:      sess.TenantID,
		Email:         email,
		EmailVerified: false, // se verifica por código, nunca en el alta
		Provider:      ProviderEmail,
		Connection:    ConnectionEmail,
	})
	if err != nil {
		return nil, err
	}

	hash, err := password.Hash(password.Default, plain)
	if err != nil {
		return nil, err
	}
	if err := e.passwords.Create(ctx, sess.TenantID, user.ID, hash); err != nil {
		return nil, err
	}
	e.trail.Record(ctx, audit.Event{
		TenantID:   sess.TenantID,
		Type:       audit.SuccessSignup,
		UserID:     user.ID,
		ClientID:   sess.ClientID,
		Connection: ConnectionEmail,
	})

	if info.EmailValidation == repository.EmailValidationEnforced {
		return nil, ErrEmailNotVerified
	}
	return e.finish(ctx, sess, info, user, "pwd")
}

// finish es el estado Issuing: consume la sesión (atómico, terminal) y emite
// code o tokens según el response_type capturado en Start.
func (e *Engine) finish(ctx context.Context, sess *repository.Session, info *repository.ApplicationInfo, user *repository.User, amr string) (*Redirect, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("authorize.finish"),
		logger.SessionID(sess.ID), logger.TenantID(sess.TenantID), logger.UserID(user.ID))

	now := e.now().UTC()
	if sess.Expired(now) {
		return nil, ErrExpiredSession
	}
	if err := e.sessions.Use(ctx, sess.ID, now); err != nil {
		switch {
		case repository.IsNotFound(err):
			return nil, ErrExpiredSession
		case err == repository.ErrSessionUsed:
			return nil, ErrSessionConsumed
		default:
			return nil, err
		}
	}

	// Bookkeeping de login, best effort.
	lc := user.LoginsCount + 1
	if err := e.users.Update(ctx, sess.TenantID, user.ID, repository.UpdateUserInput{
		LoginsCount: &lc,
		LastLogin:   &now,
	}); err != nil {
		log.Warn("login bookkeeping failed", logger.Err(err))
	}

	if e.hooks != nil {
		e.hooks.Dispatch(ctx, sess.TenantID, repository.TriggerPostUserLogin, user)
	}
	e.trail.Record(ctx, audit.Event{
		TenantID:   sess.TenantID,
		Type:       audit.SuccessLogin,
		UserID:     user.ID,
		ClientID:   sess.ClientID,
		Connection: user.Connection,
		Details:    map[string]any{"amr": amr},
	})

	rts := strings.Fields(sess.AuthParams.ResponseType)
	hasCode, hasToken, hasIDToken := false, false, false
	for _, rt := range rts {
		switch rt {
		case "code":
			hasCode = true
		case "token":
			hasToken = true
		case "id_token":
			hasIDToken = true
		}
	}

	params := map[string]string{"state": sess.AuthParams.State}
	aud := audience(info)

	if hasCode {
		code, err := e.codes.IssueAuthorization(ctx, sess.TenantID, user, sess.ID)
		if err != nil {
			return nil, err
		}
		params["code"] = code.Code
		e.trail.Record(ctx, audit.Event{
			TenantID: sess.TenantID,
			Type:     audit.SuccessAuthorizationCodeIssue,
			UserID:   user.ID,
			ClientID: sess.ClientID,
		})
	}
	if hasToken {
		access, exp, err := e.issuer.IssueAccess(ctx, user.ID, aud, map[string]any{
			"azp":   sess.ClientID,
			"tid":   sess.TenantID,
			"scope": sess.AuthParams.Scope,
		})
		if err != nil {
			return nil, err
		}
		params["access_token"] = access
		params["token_type"] = "Bearer"
		params["expires_in"] = strconv.FormatInt(int64(time.Until(exp).Seconds()), 10)
	}
	if hasIDToken {
		idt, _, err := e.issuer.IssueIDToken(ctx, user.ID, sess.ClientID,
			idClaims(user, sess.ClientID, sess.AuthParams.Nonce, sess.AuthParams.Scope))
		if err != nil {
			return nil, err
		}
		params["id_token"] = idt
	}

	mode := responseModeFor(sess.AuthParams.ResponseMode, hasToken, hasIDToken)
	red := buildRedirect(sess.AuthParams.RedirectURI, mode, params)
	log.Info("authorization issued", logger.String("response_type", sess.AuthParams.ResponseType))
	return &red, nil
}

// loadSession carga y valida la sesión: inexistente o vencida => reiniciar login.
func (e *Engine) loadSession(ctx context.Context, sessionID string) (*repository.Session, *repository.ApplicationInfo, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, ErrExpiredSession
		}
		return nil, nil, err
	}
	if sess.Expired(e.now().UTC()) {
		return nil, nil, ErrExpiredSession
	}
	if sess.UsedAt != nil {
		return nil, nil, ErrSessionConsumed
	}
	info, err := e.lookupApp(ctx, sess.ClientID)
	if err != nil {
		return nil, nil, err
	}
	return sess, info, nil
}

// lookupApp resuelve la application con cache corto (vista read-mostly).
func (e *Engine) lookupApp(ctx context.Context, clientID string) (*repository.ApplicationInfo, error) {
	key := "app:" + clientID
	if e.cache != nil {
		if b, ok := e.cache.Get(key); ok {
			var info repository.ApplicationInfo
			if json.Unmarshal(b, &info) == nil {
				return &info, nil
			}
		}
	}
	info, err := e.apps.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if b, err := json.Marshal(info); err == nil {
			e.cache.Set(key, b, appCacheTTL)
		}
	}
	return info, nil
}

// findEmailUser busca la identidad email (password/OTP) de un email en el tenant.
func (e *Engine) findEmailUser(ctx context.Context, tenantID, email string) (*repository.User, error) {
	us, err := e.users.ListByEmail(ctx, tenantID, email)
	if err != nil {
		return nil, err
	}
	for i := range us {
		if us[i].Provider == ProviderEmail {
			out := us[i]
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// findExisting busca una identidad federada exacta (provider+connection+email).
func (e *Engine) findExisting(ctx context.Context, tenantID string, candidate *repository.User) (*repository.User, error) {
	if candidate.Email == "" {
		return nil, repository.ErrNotFound
	}
	us, err := e.users.ListByEmail(ctx, tenantID, candidate.Email)
	if err != nil {
		return nil, err
	}
	for i := range us {
		if us[i].Provider == candidate.Provider && us[i].Connection == candidate.Connection {
			out := us[i]
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// canonical devuelve el primario si la identidad está linkeada.
func (e *Engine) canonical(ctx context.Context, u *repository.User) (*repository.User, error) {
	if u.LinkedTo == nil {
		return u, nil
	}
	return e.users.Get(ctx, u.TenantID, *u.LinkedTo)
}

func validResponseType(rt string) bool {
	parts := strings.Fields(rt)
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		switch p {
		case "code", "token", "id_token":
		default:
			return false
		}
	}
	return true
}

func audience(info *repository.ApplicationInfo) string {
	if info.Tenant.Audience != "" {
		return info.Tenant.Audience
	}
	return info.ID
}

// idClaims arma los claims OIDC del id_token según los scopes otorgados.
func idClaims(u *repository.User, clientID, nonce, scope string) map[string]any {
	claims := map[string]any{"azp": clientID}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	scopes := " " + scope + " "
	if strings.Contains(scopes, " email ") {
		claims["email"] = u.Email
		claims["email_verified"] = u.EmailVerified
	}
	if strings.Contains(scopes, " profile ") {
		if u.Name != "" {
			claims["name"] = u.Name
		}
		if u.GivenName != "" {
			claims["given_name"] = u.GivenName
		}
		if u.FamilyName != "" {
			claims["family_name"] = u.FamilyName
		}
		if u.Nickname != "" {
			claims["nickname"] = u.Nickname
		}
		if u.Picture != "" {
			claims["picture"] = u.Picture
		}
		if u.Locale != "" {
			claims["locale"] = u.Locale
		}
	}
	return claims
}
