package storage

import (
	"context"
	"fmt"

	"dealflow-ingest/config"
	"dealflow-ingest/utils"
)

// Open connects to the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*SQLStore, error) {
	switch cfg.StoreDriver {
	case "postgres", "postgresql", "":
		return NewPostgresStore(ctx, cfg.DSN(), cfg.DBConnectRetries, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("storage: unknown STORE_DRIVER %q (want postgres or sqlite)", cfg.StoreDriver)
	}
}
