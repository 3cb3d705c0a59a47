package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/config"
	"github.com/marmos91/labgate/pkg/controlplane/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Create or upgrade the principal database schema (SQLite or PostgreSQL).

Examples:
  # Run migrations with default config
  labgate migrate

  # Run migrations with custom config
  labgate migrate --config /etc/labgate/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", "type", cfg.Database.Type)

	// store.New migrates on open.
	ctx := context.Background()
	cpStore, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = cpStore.Close() }()

	if err := cpStore.Healthcheck(ctx); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
