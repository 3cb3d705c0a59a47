package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/config"
	"github.com/marmos91/labgate/pkg/portal"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadPortal loads the configuration, initializes logging and builds the
// login pipeline. The caller must Close the returned portal.
func loadPortal(ctx context.Context) (*config.Config, *portal.Portal, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, nil, err
	}
	p, err := portal.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build login pipeline: %w", err)
	}
	return cfg, p, nil
}

// getConfigSource returns a description of where the config was loaded from
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
