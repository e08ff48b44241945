package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/broker"
	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/metrics"
	"github.com/filemill/filemill/pkg/metrics/prometheus"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/store"
	"github.com/filemill/filemill/pkg/worker"
	"github.com/filemill/filemill/pkg/worker/ai"
	"github.com/filemill/filemill/pkg/worker/image"
	"github.com/filemill/filemill/pkg/worker/security"
	"github.com/filemill/filemill/pkg/worker/video"
)

var workerFleet string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start a worker fleet consumer",
	Long: `Start a worker process consuming one fleet's queue.

Each fleet owns one queue and one set of actions:
  image     THUMBNAIL, CONVERT, COMPRESS, METADATA
  video     VIDEO_THUMBNAIL, VIDEO_PREVIEW, VIDEO_CONVERT
  security  VIRUS_SCAN, SECURE_COMPRESS, CRYPTO
  ai        AI_TAG

Run one process per fleet; scale a fleet by running more processes with
the same --fleet value. The broker delivers each job to exactly one of
them.

Examples:
  # Consume the image queue
  filemill worker --fleet image

  # Consume the video queue with a custom config
  filemill worker --fleet video --config /etc/filemill/config.yaml`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerFleet, "fleet", "", fmt.Sprintf("Fleet to run (%s)", strings.Join(worker.AllFleets(), "|")))
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if workerFleet != "" {
		cfg.Worker.Fleet = workerFleet
	}
	if cfg.Worker.Fleet == "" {
		return fmt.Errorf("no fleet selected: pass --fleet (%s)", strings.Join(worker.AllFleets(), "|"))
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownObservability, err := initObservability(ctx, cfg, "filemill-worker-"+cfg.Worker.Fleet)
	if err != nil {
		return err
	}
	defer shutdownObservability()

	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	// Workers never create schema; serve or migrate must have run first.
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = st.Close() }()

	objects, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	bk, err := broker.Connect(cfg.Broker, prometheus.NewPublishMetrics())
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() { _ = bk.Close() }()

	handlers, err := fleetHandlers(cfg, st)
	if err != nil {
		return err
	}

	w, err := worker.New(cfg.Worker, st, objects, bk, handlers, prometheus.NewJobMetrics())
	if err != nil {
		return err
	}

	// Workers have no API listener, so metrics get their own one.
	if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
		metricsSrv := metrics.NewServer(cfg.Metrics.Listen)
		go func() {
			if err := metricsSrv.Start(ctx); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Worker is running. Press Ctrl+C to stop.",
		"fleet", cfg.Worker.Fleet,
		"queue", w.Queue())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, finishing in-flight job")
		cancel()

		if err := <-workerDone; err != nil {
			logger.Error("Worker shutdown error", "error", err)
			return err
		}
		logger.Info("Worker stopped gracefully")

	case err := <-workerDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Worker error", "error", err)
			return err
		}
		logger.Info("Worker stopped")
	}

	return nil
}

// fleetHandlers builds the handler set for the configured fleet.
func fleetHandlers(cfg *config.Config, st *store.GORMStore) ([]worker.Handler, error) {
	switch cfg.Worker.Fleet {
	case worker.FleetImage:
		return image.Handlers(st), nil
	case worker.FleetVideo:
		return video.Handlers(cfg.Worker), nil
	case worker.FleetSecurity:
		return security.Handlers(cfg.Worker), nil
	case worker.FleetAI:
		return ai.Handlers(cfg.Worker, st), nil
	}
	return nil, fmt.Errorf("unknown fleet %q (valid: %s)", cfg.Worker.Fleet, strings.Join(worker.AllFleets(), ", "))
}
