package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/labgate/internal/adminserver"
	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/internal/telemetry"
	"github.com/marmos91/labgate/pkg/config"
	"github.com/marmos91/labgate/pkg/metrics"
	"github.com/marmos91/labgate/pkg/portal"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/labgate/pkg/metrics/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the login pipeline with its admin listener",
	Long: `Build the login pipeline for every configured namespace and serve the
admin endpoints (/healthz, /readyz and, when enabled, /metrics) on
metrics.port until interrupted.

Examples:
  labgate serve --config /etc/labgate/config.yaml

  # Environment overrides
  LABGATE_LOGGING_LEVEL=DEBUG labgate serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = "labgate"
	telemetryCfg.ServiceVersion = Version
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	// The registry must exist before the pipeline creates its collectors.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	p, err := portal.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build login pipeline: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Error("Pipeline shutdown error", logger.Err(err))
		}
	}()
	logger.Info("Login pipeline ready", "namespaces", p.Namespaces())

	admin := adminserver.New(cfg.Metrics.Port, p)
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- admin.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer stop()
		if err := admin.Stop(shutdownCtx); err != nil {
			return err
		}
		cancel()
		<-serverDone
		logger.Info("Server stopped gracefully")
		return nil

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped")
		return nil
	}
}
