// Package bootstrap carga el seed inicial del storage: tenants con sus
// applications, connections, hooks y usuarios. Sin seed el server arranca
// vacío y sólo sirve discovery y JWKS.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/authrim/authrim/internal/domain/repository"
	"github.com/authrim/authrim/internal/observability/logger"
	"github.com/authrim/authrim/internal/security/password"
	memstore "github.com/authrim/authrim/internal/store/memory"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Tenants []seedTenant `yaml:"tenants"`
}

type seedTenant struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Audience     string `yaml:"audience"`
	SenderEmail  string `yaml:"sender_email"`
	SenderName   string `yaml:"sender_name"`
	Language     string `yaml:"language"`
	LogoURL      string `yaml:"logo_url"`
	PrimaryColor string `yaml:"primary_color"`
	SupportURL   string `yaml:"support_url"`

	Applications []seedApplication `yaml:"applications"`
	Connections  []seedConnection  `yaml:"connections"`
	Hooks        []seedHook        `yaml:"hooks"`
	Users        []seedUser        `yaml:"users"`
}

type seedApplication struct {
	ClientID        string   `yaml:"client_id"`
	Name            string   `yaml:"name"`
	ClientSecret    string   `yaml:"client_secret"`
	CallbackURLs    []string `yaml:"callback_urls"`
	LogoutURLs      []string `yaml:"logout_urls"`
	WebOrigins      []string `yaml:"web_origins"`
	EmailValidation string   `yaml:"email_validation"` // enabled | disabled | enforced
	DisableSignUps  bool     `yaml:"disable_sign_ups"`
}

type seedConnection struct {
	Name                  string `yaml:"name"`
	ClientID              string `yaml:"client_id"`
	ClientSecret          string `yaml:"client_secret"`
	AuthorizationEndpoint string `yaml:"authorization_endpoint"`
	TokenEndpoint         string `yaml:"token_endpoint"`
	Scope                 string `yaml:"scope"`
}

type seedHook struct {
	URL     string `yaml:"url"`
	Trigger string `yaml:"trigger"`
	Enabled *bool  `yaml:"enabled"`
}

type seedUser struct {
	Email         string `yaml:"email"`
	Password      string `yaml:"password"`
	EmailVerified bool   `yaml:"email_verified"`
	Name          string `yaml:"name"`
}

// LoadSeed lee el YAML y puebla el store. Idempotente sólo sobre un store
// vacío: pensado para el arranque, no para re-aplicar.
func LoadSeed(ctx context.Context, st *memstore.Store, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sf seedFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return fmt.Errorf("seed: yaml inválido: %w", err)
	}

	log := logger.L().With(logger.Op("bootstrap.seed"))
	now := time.Now().UTC()

	for _, t := range sf.Tenants {
		tenant := &repository.Tenant{
			ID:           orUUID(t.ID),
			Name:         t.Name,
			Audience:     t.Audience,
			SenderEmail:  t.SenderEmail,
			SenderName:   t.SenderName,
			Language:     t.Language,
			LogoURL:      t.LogoURL,
			PrimaryColor: t.PrimaryColor,
			SupportURL:   t.SupportURL,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := st.Tenants().Create(ctx, tenant); err != nil {
			return fmt.Errorf("seed: tenant %q: %w", t.Name, err)
		}

		for _, a := range t.Applications {
			app := &repository.Application{
				ID:                  orUUID(a.ClientID),
				TenantID:            tenant.ID,
				Name:                a.Name,
				ClientSecret:        a.ClientSecret,
				AllowedCallbackURLs: a.CallbackURLs,
				AllowedLogoutURLs:   a.LogoutURLs,
				AllowedWebOrigins:   a.WebOrigins,
				EmailValidation:     emailValidation(a.EmailValidation),
				DisableSignUps:      a.DisableSignUps,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			if err := st.Applications().Create(ctx, tenant.ID, app); err != nil {
				return fmt.Errorf("seed: application %q: %w", a.Name, err)
			}
		}

		for _, c := range t.Connections {
			conn := &repository.Connection{
				ID:                    uuid.NewString(),
				TenantID:              tenant.ID,
				Name:                  c.Name,
				ClientID:              c.ClientID,
				ClientSecret:          c.ClientSecret,
				AuthorizationEndpoint: c.AuthorizationEndpoint,
				TokenEndpoint:         c.TokenEndpoint,
				Scope:                 c.Scope,
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			if err := st.Connections().Create(ctx, tenant.ID, conn); err != nil {
				return fmt.Errorf("seed: connection %q: %w", c.Name, err)
			}
		}

		for _, h := range t.Hooks {
			enabled := true
			if h.Enabled != nil {
				enabled = *h.Enabled
			}
			st.AddHook(repository.Hook{
				ID:        uuid.NewString(),
				TenantID:  tenant.ID,
				URL:       h.URL,
				TriggerID: h.Trigger,
				Enabled:   enabled,
				CreatedAt: now,
			})
		}

		for _, u := range t.Users {
			user := &repository.User{
				ID:            uuid.NewString(),
				TenantID:      tenant.ID,
				Email:         u.Email,
				EmailVerified: u.EmailVerified,
				Provider:      "email",
				Connection:    "email",
				Name:          u.Name,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := st.Users().Create(ctx, user); err != nil {
				return fmt.Errorf("seed: user %q: %w", u.Email, err)
			}
			if u.Password != "" {
				hash, err := password.Hash(password.Default, u.Password)
				if err != nil {
					return err
				}
				if err := st.Passwords().Create(ctx, tenant.ID, user.ID, hash); err != nil {
					return err
				}
			}
		}

		log.Info("tenant seeded",
			logger.TenantID(tenant.ID),
			logger.Int("applications", len(t.Applications)),
			logger.Int("users", len(t.Users)),
		)
	}
	return nil
}

func orUUID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func emailValidation(v string) string {
	switch v {
	case repository.EmailValidationDisabled, repository.EmailValidationEnforced:
		return v
	default:
		return repository.EmailValidationEnabled
	}
}
