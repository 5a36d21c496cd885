package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/clientauth/internal/auth/store"
	"github.com/aussiebroadwan/clientauth/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/clientauth/internal/auth/store/drivers/sqlite"
)

// OpenStore connects to the configured credential store without migrating it.
func OpenStore(ctx context.Context, cfg DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return postgres.NewStore(ctx, cfg.PostgresURL)
	case DriverSQLite:
		return sqlite.NewStore(sqlite.FileDSN(cfg.SQLiteFile))
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Migrate applies pending schema migrations to the configured store.
func Migrate(ctx context.Context, cfg DatabaseConfig, logger *slog.Logger) error {
	db, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	logger.Info("database migrations applied successfully", "driver", cfg.Driver)
	return nil
}
