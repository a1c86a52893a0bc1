package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellomail/internal/app"
	"github.com/dropDatabas3/hellomail/internal/config"
	"github.com/dropDatabas3/hellomail/internal/observability/logger"

	// adapters del store (se registran en init)
	_ "github.com/dropDatabas3/hellomail/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/hellomail/internal/store/adapters/mongo"
	_ "github.com/dropDatabas3/hellomail/internal/store/adapters/pg"
)

var version = "dev"

func main() {
	var (
		configPath = envOr("CONFIG_PATH", "")
		envFile    = ".env"
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "hellomail",
		Short:         "CRM de emails: listas, destinatarios y envíos vía Gmail",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if c.App.Version == "" {
				c.App.Version = version
			}
			logger.Init(logger.Config{Env: c.App.Env, Level: c.Logging.Level, ServiceName: "hellomail"})
			cfg = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "ruta a config.yaml (env CONFIG_PATH; vacío = sólo env)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "ruta a .env (si existe, se carga)")

	// serve
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP y el scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.L().Error("shutdown close failed", logger.Err(err))
				}
			}()
			return a.Run(ctx)
		},
	}

	// tick
	tickCmd := &cobra.Command{
		Use:   "tick",
		Short: "Ejecuta un único tick del scheduler y termina",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Scheduler.Tick(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("scanned=%d due=%d dispatched=%d skipped=%d failed=%d\n",
				rep.Scanned, rep.Due, rep.Dispatched, rep.Skipped, rep.Failed)
			return nil
		},
	}

	// migrate
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el esquema del store configurado (postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Storage.Migrate = true
			st, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			logger.L().Info("migrations applied", logger.String("adapter", st.Name()))
			return nil
		},
	}

	// print-config
	printCmd := &cobra.Command{
		Use:   "print-config",
		Short: "Imprime la config efectiva (secretos enmascarados)",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cfg.Summary())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	root.AddCommand(serveCmd, tickCmd, migrateCmd, printCmd, versionCmd)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
