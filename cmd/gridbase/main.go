// gridbase is a dynamic tabular data engine: user-defined tables with
// dynamically typed columns over sparse EAV cell storage, exposed over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridbase/gridbase/internal/server"
	"github.com/gridbase/gridbase/pkg/config"
	"github.com/gridbase/gridbase/pkg/engine"
	"github.com/gridbase/gridbase/pkg/logger"
	"github.com/gridbase/gridbase/pkg/observability"
	"github.com/gridbase/gridbase/pkg/storage"
	"github.com/gridbase/gridbase/pkg/storage/memory"
	"github.com/gridbase/gridbase/pkg/storage/postgres"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridbase",
		Short: "Dynamic tabular data engine",
		Long: `gridbase stores user-defined tables with dynamically typed columns
as sparse entity-attribute-value cells, coordinates concurrent schema
mutations per table, and serves reads as raw triples or pivoted rows.`,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(serveCmd(), seedCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			eng := engine.New(store, engine.Options{MutationWait: cfg.Engine.MutationWait}, logger.Get())
			resolver := server.NewStaticResolver(cfg.Auth.Tokens)
			srv := server.New(eng, resolver, cfg, logger.Get())

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				logger.Info("shutting down", zap.String("signal", sig.String()))
			}

			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Error("shutdown failed", zap.Error(err))
			}
			if err := observability.Shutdown(context.Background()); err != nil {
				logger.Error("tracing shutdown failed", zap.Error(err))
			}
			_ = logger.Sync()
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample tables into the configured storage backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Backend == "memory" {
				return fmt.Errorf("seeding the memory backend is pointless; data is gone when the process exits")
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			eng := engine.New(store, engine.Options{MutationWait: cfg.Engine.MutationWait}, logger.Get())
			if err := Seed(cmd.Context(), eng); err != nil {
				return err
			}
			logger.Info("seed data loaded")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("gridbase %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// loadConfig reads .env, the optional config file, and validates the result.
// It also initializes the global logger and tracing so every command runs
// with the same observability setup.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg := config.Default()
	if configFile != "" {
		if err := config.Load(configFile, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Observability.EnableTracing {
		if err := observability.Initialize(observability.TracingConfig{
			ServiceName:    "gridbase",
			ServiceVersion: version,
			Environment:    os.Getenv("GRIDBASE_ENV"),
			SamplingRate:   1.0,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	return cfg, nil
}

// openStore builds the storage backend the config selects
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		return postgres.NewStore(ctx, postgres.Config{
			DSN:            cfg.Storage.DSN,
			MaxConns:       cfg.Storage.MaxConns,
			ConnectTimeout: cfg.Storage.ConnectTimeout,
			Migrate:        cfg.Storage.Migrate,
		}, logger.Get())
	default:
		return memory.NewStore(logger.Get()), nil
	}
}
