// Package audit escribe el trail de eventos de autorización: cada exchange y
// cada login (exitoso o no) deja una entrada en el LogRepository del tenant y
// se espeja a zap. Las fallas de escritura del trail se loguean y no cortan
// el flujo que las originó.
package audit

import (
	"context"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/observability/logger"
	"github.com/google/uuid"
)

// Tipos de evento conocidos.
const (
	SuccessLogin                  = "SUCCESS_LOGIN"
	SuccessSignup                 = "SUCCESS_SIGNUP"
	SuccessLogout                 = "SUCCESS_LOGOUT"
	SuccessExchangeAuthCodeForAT  = "SUCCESS_EXCHANGE_AUTHORIZATION_CODE_FOR_ACCESS_TOKEN"
	FailedLoginIncorrectPassword  = "FAILED_LOGIN_INCORRECT_PASSWORD"
	FailedLoginInvalidCode        = "FAILED_LOGIN_INVALID_CODE"
	FailedExchange                = "FAILED_EXCHANGE"
	FailedAuthorizationRequest    = "FAILED_AUTHORIZATION_REQUEST"
	SuccessAuthorizationCodeIssue = "CODE_ISSUED"
)

// Event es un evento a registrar.
type Event struct {
	TenantID   string
	Type       string
	UserID     string
	ClientID   string
	Connection string
	Details    map[string]any
}

// Trail escribe eventos al audit log.
type Trail struct {
	logs repository.LogRepository
}

// NewTrail crea un Trail sobre el repositorio de logs.
func NewTrail(logs repository.LogRepository) *Trail {
	return &Trail{logs: logs}
}

// Record persiste el evento. Best-effort: un error de storage se loguea y se
// absorbe, el trail nunca falla al llamador.
func (t *Trail) Record(ctx context.Context, ev Event) {
	if t == nil || t.logs == nil {
		return
	}
	log := logger.From(ctx).With(
		logger.String("event", ev.Type),
		logger.TenantID(ev.TenantID),
		logger.ClientID(ev.ClientID),
		logger.UserID(ev.UserID),
	)
	entry := &repository.LogEntry{
		ID:         uuid.NewString(),
		TenantID:   ev.TenantID,
		Type:       ev.Type,
		UserID:     ev.UserID,
		ClientID:   ev.ClientID,
		Connection: ev.Connection,
		Details:    ev.Details,
		Date:       time.Now().UTC(),
	}
	if err := t.logs.Create(ctx, entry); err != nil {
		log.Warn("audit write failed", logger.Err(err))
		return
	}
	log.Info("audit")
}
