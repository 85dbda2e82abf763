package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authrim/authrim/internal/app"
	"github.com/authrim/authrim/internal/bootstrap"
	"github.com/authrim/authrim/internal/config"
	httpx "github.com/authrim/authrim/internal/http"
	"github.com/authrim/authrim/internal/http/router"
	"github.com/authrim/authrim/internal/observability/logger"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	// .env opcional: en prod la config llega por entorno.
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:          "authrim",
		Short:        "Multi-tenant OAuth2/OIDC identity provider",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("AUTHRIM_CONFIG"), "ruta al config.yaml (env AUTHRIM_CONFIG)")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(keysCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func buildContainer(cfgPath string) (*app.Container, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.Init(logger.Config{Env: cfg.App.Env, ServiceName: "authrim"})
	return app.Build(cfg)
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Arranca el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			log := logger.L()
			ctx := cmd.Context()

			// Sin claves no se pueden firmar tokens: generar la primera.
			if err := c.Keystore.EnsureBootstrap(ctx); err != nil {
				return fmt.Errorf("keystore bootstrap: %w", err)
			}

			if c.Cfg.Seed.File != "" {
				if err := bootstrap.LoadSeed(ctx, c.Store, c.Cfg.Seed.File); err != nil {
					return fmt.Errorf("seed: %w", err)
				}
			}

			deps := c.RouterDeps()
			metricsHandler, err := httpx.RegisterMetrics(prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			deps.Metrics = metricsHandler

			srv := httpx.NewServer(
				c.Cfg.Server.Addr,
				router.New(deps),
				config.Duration(c.Cfg.Server.ReadTimeout, 10*time.Second),
				config.Duration(c.Cfg.Server.WriteTimeout, 15*time.Second),
			)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			log.Info("server started", logger.String("addr", c.Cfg.Server.Addr))

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
			case sig := <-stop:
				log.Info("shutting down", logger.String("signal", sig.String()))
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func keysCmd(cfgPath *string) *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "Operaciones sobre claves de firma"}

	rotate := &cobra.Command{
		Use:   "rotate",
		Short: "Genera una clave nueva; las anteriores siguen verificando",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			key, err := c.Keystore.Rotate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("rotated: kid=%s\n", key.KID)
			return nil
		},
	}

	var revokeKID string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoca una clave: sus tokens dejan de verificar de inmediato",
		RunE: func(cmd *cobra.Command, args []string) error {
			if revokeKID == "" {
				return fmt.Errorf("--kid es requerido")
			}
			c, err := buildContainer(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if err := c.Keystore.Revoke(cmd.Context(), revokeKID); err != nil {
				return err
			}
			fmt.Printf("revoked: kid=%s\n", revokeKID)
			return nil
		},
	}
	revoke.Flags().StringVar(&revokeKID, "kid", "", "key id a revocar")

	list := &cobra.Command{
		Use:   "list",
		Short: "Lista las claves activas (vista pública)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			active, err := c.Keystore.ListActive(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range active {
				fmt.Printf("kid=%s created_at=%s\n", k.KID, k.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	keys.AddCommand(rotate, revoke, list)
	return keys
}
