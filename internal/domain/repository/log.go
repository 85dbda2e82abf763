package repository

import (
	"context"
	"time"
)

// LogEntry es un evento del audit trail (append-only).
type LogEntry struct {
	ID         string
	TenantID   string
	Type       string // ver internal/audit por los tipos conocidos
	UserID     string
	ClientID   string
	Connection string
	Details    map[string]any
	Date       time.Time
}

// ListLogsFilter define filtros para listar logs.
type ListLogsFilter struct {
	Type   string // opcional, filtra por tipo de evento
	UserID string // opcional
	Limit  int    // default 50
}

// LogRepository define el audit trail. Solo append y lectura.
type LogRepository interface {
	// Create agrega una entrada al trail.
	Create(ctx context.Context, entry *LogEntry) error

	// List retorna entradas de un tenant, más recientes primero.
	List(ctx context.Context, tenantID string, filter ListLogsFilter) ([]LogEntry, error)
}
