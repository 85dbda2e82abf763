// Package app es la composition root: arma storage, keystore, services y
// handlers a partir de la configuración.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/authrim/authrim/internal/audit"
	"github.com/authrim/authrim/internal/authorize"
	"github.com/authrim/authrim/internal/cache"
	"github.com/authrim/authrim/internal/codes"
	"github.com/authrim/authrim/internal/config"
	"github.com/authrim/authrim/internal/email"
	"github.com/authrim/authrim/internal/flows"
	"github.com/authrim/authrim/internal/hooks"
	"github.com/authrim/authrim/internal/http/handlers"
	"github.com/authrim/authrim/internal/http/router"
	"github.com/authrim/authrim/internal/identity"
	"github.com/authrim/authrim/internal/infra/cachefactory"
	jwtx "github.com/authrim/authrim/internal/jwt"
	"github.com/authrim/authrim/internal/rate"
	memstore "github.com/authrim/authrim/internal/store/memory"
	"github.com/authrim/authrim/internal/token"
	"github.com/authrim/authrim/internal/upstream"
	rdb "github.com/redis/go-redis/v9"
)

// Container agrupa las piezas armadas, para el server y para los comandos CLI.
type Container struct {
	Cfg *config.Config

	Store    *memstore.Store
	Cache    cache.Cache
	Keystore *jwtx.Keystore
	Issuer   *jwtx.Issuer

	Codes      *codes.Service
	Dispatcher *hooks.Dispatcher
	Resolver   *identity.Resolver
	Trail      *audit.Trail
	Engine     *authorize.Engine
	Tokens     *token.Service
	Flows      *flows.Service
	Upstream   *upstream.Client
}

// Build arma el contenedor. No arranca nada: el servidor HTTP y el bootstrap
// de claves corren aparte.
func Build(cfg *config.Config) (*Container, error) {
	st := memstore.New()

	var fc cachefactory.Config
	fc.Kind = cfg.Cache.Kind
	fc.Redis.Addr = cfg.Cache.Redis.Addr
	fc.Redis.DB = cfg.Cache.Redis.DB
	fc.Redis.Prefix = cfg.Cache.Redis.Prefix
	fc.Memory.DefaultTTL = cfg.Cache.Memory.DefaultTTL
	cc, err := cachefactory.Open(fc)
	if err != nil {
		return nil, err
	}

	ks := jwtx.NewKeystore(st.Keys())
	issuer := jwtx.NewIssuer(cfg.JWT.Issuer, ks)
	issuer.AccessTTL = config.Duration(cfg.JWT.AccessTTL, 15*time.Minute)

	codeSvc := codes.NewService(st.Codes())
	dispatcher := hooks.NewDispatcher(st.Hooks(), int64(cfg.Hooks.MaxInflight),
		hooks.WithTimeout(config.Duration(cfg.Hooks.Timeout, 10*time.Second)))
	resolver := identity.NewResolver(st.Users(), dispatcher)
	trail := audit.NewTrail(st.Logs())

	engine := authorize.NewEngine(authorize.Deps{
		Apps:       st.Applications(),
		Users:      st.Users(),
		Passwords:  st.Passwords(),
		Sessions:   st.Sessions(),
		Codes:      codeSvc,
		Issuer:     issuer,
		Resolver:   resolver,
		Hooks:      dispatcher,
		Trail:      trail,
		Cache:      cc,
		SessionTTL: config.Duration(cfg.Authorize.SessionTTL, 30*time.Minute),
	})

	tokens := token.NewService(token.Deps{
		Apps:      st.Applications(),
		Users:     st.Users(),
		Passwords: st.Passwords(),
		Sessions:  st.Sessions(),
		Codes:     codeSvc,
		Issuer:    issuer,
		Trail:     trail,
	})

	var sender email.Sender
	if cfg.SMTP.Host != "" {
		smtp := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		smtp.TLSMode = cfg.SMTP.TLS
		smtp.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		sender = smtp
	} else {
		sender = email.Discard{}
	}

	flowSvc := flows.NewService(flows.Deps{
		Tenants:   st.Tenants(),
		Users:     st.Users(),
		Passwords: st.Passwords(),
		Codes:     codeSvc,
		Sender:    sender,
	})

	return &Container{
		Cfg:        cfg,
		Store:      st,
		Cache:      cc,
		Keystore:   ks,
		Issuer:     issuer,
		Codes:      codeSvc,
		Dispatcher: dispatcher,
		Resolver:   resolver,
		Trail:      trail,
		Engine:     engine,
		Tokens:     tokens,
		Flows:      flowSvc,
		Upstream:   upstream.New(),
	}, nil
}

// RouterDeps construye las dependencias del router HTTP.
func (c *Container) RouterDeps() router.Deps {
	cfg := c.Cfg
	var loginLimiter, forgotLimiter rate.Limiter
	if cfg.Rate.Enabled {
		if cfg.Cache.Kind == "redis" {
			client := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
			loginLimiter = rate.NewRedisLimiter(client, "rl:login:", cfg.Rate.Login.Limit,
				config.Duration(cfg.Rate.Login.Window, time.Minute))
			forgotLimiter = rate.NewRedisLimiter(client, "rl:forgot:", cfg.Rate.Forgot.Limit,
				config.Duration(cfg.Rate.Forgot.Window, 10*time.Minute))
		} else {
			loginLimiter = rate.NewMemoryLimiter(cfg.Rate.Login.Limit,
				config.Duration(cfg.Rate.Login.Window, time.Minute))
			forgotLimiter = rate.NewMemoryLimiter(cfg.Rate.Forgot.Limit,
				config.Duration(cfg.Rate.Forgot.Window, 10*time.Minute))
		}
	}

	return router.Deps{
		Authorize: &handlers.AuthorizeHandler{Engine: c.Engine},
		Login:     &handlers.LoginHandler{Engine: c.Engine},
		Social: &handlers.SocialHandler{
			Engine:      c.Engine,
			Sessions:    c.Store.Sessions(),
			Connections: c.Store.Connections(),
			Upstream:    c.Upstream,
			CallbackURL: strings.TrimRight(cfg.JWT.Issuer, "/") + "/v2/auth/social/callback",
		},
		Token:     &handlers.TokenHandler{Svc: c.Tokens},
		JWKS:      &handlers.JWKSHandler{Keys: c.Keystore},
		Discovery: &handlers.DiscoveryHandler{Issuer: cfg.JWT.Issuer},
		Flows:     &handlers.FlowsHandler{Svc: c.Flows},

		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		LoginLimiter:       loginLimiter,
		ForgotLimiter:      forgotLimiter,

		Ready: func(ctx context.Context) error {
			_, err := c.Keystore.Current(ctx)
			return err
		},
	}
}
