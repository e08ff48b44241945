package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the job state database.

This command applies pending migrations to the configured database (SQLite
or PostgreSQL). "filemill serve" runs migrations on startup, so this is
only needed for migration-gated deploys where schema changes must land
before new code.

Examples:
  # Run migrations with default config
  filemill migrate

  # Run migrations with custom config
  filemill migrate --config /etc/filemill/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Applying database migrations", "type", cfg.Database.Type)

	ctx := context.Background()
	if err := store.RunMigrations(ctx, &cfg.Database); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Verify the schema by opening the store and querying users
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	if _, err := st.ListUsers(ctx); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Schema is current (database type: %s)\n", cfg.Database.Type)
	return nil
}
