package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for golang-migrate

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/store/migrations"
)

// RunMigrations applies the embedded versioned migrations for the
// PostgreSQL backend. SQLite deployments are migrated via GORM AutoMigrate
// on open and return immediately.
func RunMigrations(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Type != DatabaseTypePostgres {
		return nil
	}

	return runMigrations(ctx, cfg.ConnectionString())
}

// runMigrations walks the schema forward to the newest embedded version.
// golang-migrate takes a PostgreSQL advisory lock first, so instances
// racing at startup serialize instead of tripping over each other.
func runMigrations(ctx context.Context, connString string) error {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	logger.InfoCtx(ctx, "Applying database migrations")
	switch err := m.Up(); {
	case err == nil:
		logger.InfoCtx(ctx, "Migrations applied")
	case errors.Is(err, migrate.ErrNoChange):
		logger.InfoCtx(ctx, "Schema already up to date")
	default:
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.InfoCtx(ctx, "No migrations recorded yet")
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	default:
		logger.InfoCtx(ctx, "Schema version", "version", version, "dirty", dirty)
		if dirty {
			// A migration died mid-flight. golang-migrate refuses to run
			// until the version row is repaired by hand.
			logger.WarnCtx(ctx, "Schema version is dirty, manual repair required before the next migration")
		}
	}

	return nil
}
