package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/portero/internal/app"
	"github.com/dropDatabas3/portero/internal/config"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	migrations "github.com/dropDatabas3/portero/migrations/postgres"
)

// version se inyecta con -ldflags "-X main.version=...".
var version = "dev"

type globals struct {
	configPath string
	envPath    string
	out        string
	cfg        *config.Config
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	g := &globals{
		configPath: envOr("PORTERO_CONFIG", ""),
		envPath:    envOr("ENV_FILE_PATH", ".env"),
		out:        envOr("PORTERO_OUT", "text"),
	}

	root := &cobra.Command{
		Use:           "portero",
		Short:         "Gateway OAuth2 client_credentials con rate limiting por tenant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadEnv(cmd.Context(), g.envPath)
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			g.cfg = cfg
			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.App.LogLevel,
				ServiceName: cfg.App.Name,
				Version:     version,
			})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", g.configPath, "Archivo YAML de config (env PORTERO_CONFIG)")
	root.PersistentFlags().StringVar(&g.envPath, "env-file", g.envPath, "Archivo .env (env ENV_FILE_PATH)")
	root.PersistentFlags().StringVar(&g.out, "out", g.out, "Formato de salida: json|text")

	root.AddCommand(
		serveCmd(g),
		migrateCmd(g),
		tenantCmd(g),
		clientCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Imprime la versión",
			PersistentPreRunE: func(*cobra.Command, []string) error {
				return nil
			},
			Run: func(*cobra.Command, []string) { fmt.Println(version) },
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	_ = logger.L().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd(g *globals) *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el API HTTP y los jobs periódicos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, g.cfg, version)
			if err != nil {
				return err
			}
			defer func() {
				cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := a.Close(cctx); err != nil {
					logger.L().Warn("shutdown incomplete", logger.Err(err))
				}
			}()

			if autoMigrate {
				if pgs := a.Storage.Postgres(); pgs != nil {
					applied, err := pgs.Migrate(ctx, migrations.FS)
					if err != nil {
						return err
					}
					logger.L().Info("migrations applied", logger.Int("count", len(applied)))
				}
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Aplicar migraciones pendientes antes de servir")
	return cmd
}

func migrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes de Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := app.OpenStorage(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			pgs := st.Postgres()
			if pgs == nil {
				return fmt.Errorf("migrate requiere storage.driver=postgres")
			}
			applied, err := pgs.Migrate(ctx, migrations.FS)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("sin migraciones pendientes")
				return nil
			}
			for _, name := range applied {
				fmt.Println("applied", name)
			}
			return nil
		},
	}
}
