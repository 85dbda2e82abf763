package repository

import (
	"context"
	"time"
)

// Triggers soportados por los webhooks.
const (
	TriggerPostUserRegistration = "post-user-registration"
	TriggerPostUserLogin        = "post-user-login"
)

// Hook representa un webhook registrado por tenant. Read-only desde el engine.
type Hook struct {
	ID        string
	TenantID  string
	URL       string
	TriggerID string
	Enabled   bool
	CreatedAt time.Time
}

// HookRepository define operaciones sobre hooks.
type HookRepository interface {
	// List retorna los hooks habilitados de (tenant_id, trigger_id).
	List(ctx context.Context, tenantID, triggerID string) ([]Hook, error)
}
