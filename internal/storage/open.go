package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/manabu/internal/config"
)

// Open returns the Storage selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, dimensions int) (Storage, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStorage(cfg.DatabasePath)
	case "postgres":
		return NewPostgresStorage(ctx, cfg.DatabaseURL, dimensions)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
