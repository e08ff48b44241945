package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/api"
	"github.com/filemill/filemill/pkg/broker"
	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/dispatch"
	"github.com/filemill/filemill/pkg/metrics"
	"github.com/filemill/filemill/pkg/metrics/prometheus"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the FileMill API server",
	Long: `Start the FileMill REST API server.

The server accepts uploads, records files and jobs in the database, stores
blobs in the object store and publishes work to the broker. Worker fleets
are separate processes; start them with "filemill worker".

Configuration is read from the config file, FILEMILL_* environment
variables, or legacy names (DATABASE_URL, MINIO_*, RABBITMQ_*, SECRET_KEY).
A missing config file is fine when the environment carries everything.

Examples:
  # Start with default config location
  filemill serve

  # Start with custom config file
  filemill serve --config /etc/filemill/config.yaml

  # Start with environment variable overrides
  FILEMILL_LOGGING_LEVEL=DEBUG filemill serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownObservability, err := initObservability(ctx, cfg, "filemill-api")
	if err != nil {
		return err
	}
	defer shutdownObservability()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// Initialize metrics before the components that record into them
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	} else {
		logger.Info("Metrics collection disabled")
	}

	// State store; migrations run before GORM touches the schema
	if err := store.RunMigrations(ctx, &cfg.Database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("Store initialized", "type", cfg.Database.Type)

	// Object store
	objects, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		return fmt.Errorf("failed to ensure buckets: %w", err)
	}
	logger.Info("Object store initialized", "endpoint", cfg.ObjectStore.Endpoint)

	// Broker
	bk, err := broker.Connect(cfg.Broker, prometheus.NewPublishMetrics())
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() { _ = bk.Close() }()
	logger.Info("Broker connected", "host", cfg.Broker.Host, "port", cfg.Broker.Port)

	submitter := dispatch.NewSubmitter(st, objects, bk, prometheus.NewUploadMetrics())

	// Stale-job reaper (optional)
	if cfg.Dispatch.Reaper.Enabled {
		reaper := dispatch.NewReaper(st, bk, cfg.Dispatch.Reaper)
		reaper.Start()
		defer reaper.Stop()
		logger.Info("Reaper started",
			"interval", cfg.Dispatch.Reaper.Interval,
			"requeue_after", cfg.Dispatch.Reaper.RequeueAfter)
	}

	// API server
	srv, err := api.NewServer(cfg.Server, cfg.Auth, api.Deps{
		Store:         st,
		Objects:       objects,
		Submitter:     submitter,
		Broker:        bk,
		MaxUploadSize: int64(cfg.Dispatch.MaxUploadSize),
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}
