package handlers

import (
	stdhttp "net/http"

	"github.com/authrim/authrim/internal/codes"
	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/flows"
	httpx "github.com/authrim/authrim/internal/http"
	"github.com/go-chi/chi/v5"
)

// FlowsHandler maneja verificación de email y reset de password.
type FlowsHandler struct {
	Svc *flows.Service
}

func (h *FlowsHandler) Register(r chi.Router) {
	r.Post("/v2/auth/verify-email/start", h.VerifyStart)
	r.Post("/v2/auth/verify-email", h.VerifyConfirm)
	r.Post("/v2/auth/forgot", h.Forgot)
	r.Post("/v2/auth/reset", h.Reset)
}

type flowRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (h *FlowsHandler) VerifyStart(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var in flowRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.TenantID == "" || in.Email == "" {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "tenant_id y email son requeridos")
		return
	}
	if err := h.Svc.RequestVerification(r.Context(), in.TenantID, in.Email); err != nil {
		writeFlowError(w, err)
		return
	}
	httpx.WriteJSON(w, stdhttp.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *FlowsHandler) VerifyConfirm(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var in flowRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.TenantID == "" || in.Email == "" || in.Code == "" {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "tenant_id, email y code son requeridos")
		return
	}
	if err := h.Svc.VerifyEmail(r.Context(), in.TenantID, in.Email, in.Code); err != nil {
		writeFlowError(w, err)
		return
	}
	httpx.WriteJSON(w, stdhttp.StatusOK, map[string]string{"status": "verified"})
}

// Forgot siempre responde 202: no filtra qué emails existen.
func (h *FlowsHandler) Forgot(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var in flowRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.TenantID == "" || in.Email == "" {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "tenant_id y email son requeridos")
		return
	}
	if err := h.Svc.RequestPasswordReset(r.Context(), in.TenantID, in.Email); err != nil {
		writeFlowError(w, err)
		return
	}
	httpx.WriteJSON(w, stdhttp.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *FlowsHandler) Reset(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var in flowRequest
	if !httpx.ReadJSON(w, r, &in) {
		return
	}
	if in.TenantID == "" || in.Email == "" || in.Code == "" || in.Password == "" {
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "tenant_id, email, code y password son requeridos")
		return
	}
	if err := h.Svc.ResetPassword(r.Context(), in.TenantID, in.Email, in.Code, in.Password); err != nil {
		writeFlowError(w, err)
		return
	}
	httpx.WriteJSON(w, stdhttp.StatusOK, map[string]string{"status": "reset"})
}

func writeFlowError(w stdhttp.ResponseWriter, err error) {
	switch {
	case err == codes.ErrInvalidCode:
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_code", "código inválido, vencido o ya usado")
	case repository.IsNotFound(err):
		httpx.WriteError(w, stdhttp.StatusNotFound, "not_found", "")
	case err == repository.ErrInvalidInput:
		httpx.WriteError(w, stdhttp.StatusBadRequest, "invalid_request", "")
	default:
		httpx.WriteError(w, stdhttp.StatusInternalServerError, "server_error", "")
	}
}
