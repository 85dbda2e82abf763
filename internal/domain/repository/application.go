package repository

import (
	"context"
	"strings"
	"time"
)

// Políticas de validación de email por application.
const (
	EmailValidationEnabled  = "enabled"
	EmailValidationDisabled = "disabled"
	EmailValidationEnforced = "enforced" // login bloqueado hasta verificar email
)

// Application representa un client OAuth2 registrado bajo un tenant.
type Application struct {
	ID           string // client_id público, espacio de IDs global
	TenantID     string
	Name         string
	ClientSecret string

	// Allowlists. Un redirect/logout URI usado en un request debe coincidir
	// EXACTAMENTE con una entrada de la lista correspondiente.
	AllowedCallbackURLs []string
	AllowedLogoutURLs   []string
	AllowedWebOrigins   []string

	EmailValidation string // enabled | disabled | enforced
	DisableSignUps  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplicationInfo es el resultado del join que hace Get: application + tenant
// + connections del tenant, resueltos por client_id sin conocer el tenant.
type ApplicationInfo struct {
	Application
	Tenant      Tenant
	Connections []Connection
}

// CallbackAllowed reporta si uri está en la allowlist de callbacks (match exacto).
func (a *Application) CallbackAllowed(uri string) bool {
	for _, u := range a.AllowedCallbackURLs {
		if u == uri {
			return true
		}
	}
	return false
}

// LogoutAllowed reporta si uri está en la allowlist de logout (match exacto).
func (a *Application) LogoutAllowed(uri string) bool {
	for _, u := range a.AllowedLogoutURLs {
		if u == uri {
			return true
		}
	}
	return false
}

// ParseAllowlist convierte una allowlist delimitada por comas en slice,
// descartando entradas vacías.
func ParseAllowlist(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ApplicationRepository define operaciones sobre applications (clients OAuth2).
type ApplicationRepository interface {
	// Create registra una application bajo un tenant.
	// Retorna ErrConflict si el client_id ya existe (en cualquier tenant).
	Create(ctx context.Context, tenantID string, app *Application) error

	// Get resuelve una application por client_id solo (cruza tenants) y
	// retorna tenant y connections joined. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, clientID string) (*ApplicationInfo, error)
}
