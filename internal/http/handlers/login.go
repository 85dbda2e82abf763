package handlers

import (
	stdhttp "net/http"

	"github.com/authrim/authrim/internal/authorize"
	"github.com/authrim/authrim/internal/domain/repository"
	httpx "github.com/authrim/authrim/internal/http"
	"github.com/go-chi/chi/v5"
)

// LoginHandler maneja los endpoints que completan una sesión de login.
type LoginHandler struct {
	Engine *authorize.Engine
}

func (h *LoginHandler) Register(r chi.Router) {
	r.Post("/v2/auth/login", h.Password)
	r.Post("/v2/auth/login/code", h.EmailCode)
	r.Post("/v2/auth/signup", h.SignUp)
	r.Post("/v2/auth/social/complete", h.Social)
}

type loginRequest struct {
	State    string `json:"state"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type redirectResponse struct {
	RedirectTo string `json:"redirect_to"`
}

// Password completa la sesión con email+password.
func (h *LoginHandler) Password(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var in loginRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.State == "" || in.Email == "" || in.Password == "" {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "state, email y password son requeridos")
		return
	}
	red, err := h.Engine.CompletePassword(r.Context(), in.State, in.Email, in.Password)
	httpx.RecordLoginAttempt("password", err == nil)
	if err != nil {
		writeAuthorizeError(w, err)
		return
	}
	httpx.WriteJSON(w, stdhttp.StatusOK, redirectResponse{RedirectTo: red.Location})
}

// EmailCode completa la sesión con un OTP recibido por email.
func (h *LoginHandler) EmailCode(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var in loginRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.State == "" || in.Email == "" || in.Code == "" {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "state, email y code son requeridos")
		return
	}
	red, err := h.Engine.CompleteEmailCode(r.Context(), in.State, in.Email, in.Code)
	httpx.RecordLoginAttempt("otp", err == nil)
	if err != nil {
		writeAuthorizeError(w, err)
		return
	}
	httpx.WriteJSON(w, stdhttp.StatusOK, redirectResponse{RedirectTo: red.Location})
}

// SignUp registra usuario+password y completa el login si la política lo permite.
func (h *LoginHandler) SignUp(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var in loginRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.State == "" || in.Email == "" || in.Password == "" {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "state, email y password son requeridos")
		return
	}
	red, err := h.Engine.SignUpPassword(r.Context(), in.State, in.Email, in.Password)
	if err != nil {
		writeAuthorizeError(w, err)
		return
	}
	httpx.WriteJSON(w, stdhttp.StatusOK, redirectResponse{RedirectTo: red.Location})
}

type socialRequest struct {
	State         string `json:"state"`
	Provider      string `json:"provider"`
	Connection    string `json:"connection"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

// Social completa la sesión con una identidad ya validada por el callback
// del provider federado.
func (h *LoginHandler) Social(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var in socialRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.State == "" || in.Provider == "" {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "state y provider son requeridos")
		return
	}
	if in.Connection == "" {
		in.Connection = in.Provider
	}
	candidate := repository.User{
		Email:         in.Email,
		EmailVerified: in.EmailVerified,
		Provider:      in.Provider,
		Connection:    in.Connection,
		Name:          in.Name,
		GivenName:     in.GivenName,
		FamilyName:    in.FamilyName,
		Picture:       in.Picture,
		Locale:        in.Locale,
	}
	red, err := h.Engine.CompleteSocial(r.Context(), in.State, candidate)
	httpx.RecordLoginAttempt("social", err == nil)
	if err != nil {
		writeAuthorizeError(w, err)
		return
	}
	httpx.WriteJSON(w, stdhttp.StatusOK, redirectResponse{RedirectTo: red.Location})
}

// writeAuthorizeError mapea errores del engine a respuestas HTTP.
func writeAuthorizeError(w stdhttp.ResponseWriter, err error) {
	switch {
	case err == authorize.ErrInvalidCredentials:
		httpx.WriteError(w, stdhttp.StatusUnauthorized, "invalid_credentials", "email o credencial incorrecta")
	case err == authorize.ErrExpiredSession:
		httpx.WriteError(w, stdhttp.StatusBadRequest, "expired_session", "la sesión de login expiró, reiniciar el flujo")
	case err == authorize.ErrSessionConsumed:
		httpx.WriteError(w, stdhttp.StatusBadRequest, "session_consumed", "la sesión de login ya fue usada")
	case err == authorize.ErrSignUpsDisabled:
		httpx.WriteError(w, stdhttp.StatusForbidden, "signups_disabled", "la application no acepta registros")
	case err == authorize.ErrEmailNotVerified:
		httpx.WriteError(w, stdhttp.StatusForbidden, "email_not_verified", "verificar el email antes de continuar")
	case err == authorize.ErrInvalidRequest:
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "")
	case repository.IsConflict(err):
		httpx.WriteError(w, stdhttp.StatusConflict, "user_exists", "ya existe una cuenta con ese email")
	default:
		httpx.WriteError(w, stdhttp.StatusInternalServerError, "server_error", "")
	}
}
