package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/booking-reminder/internal/config"
	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/persistence/memory"
	"github.com/example/booking-reminder/internal/persistence/postgres"
	"github.com/example/booking-reminder/internal/persistence/sqlite"
)

// storage pairs the selected document store with its optional health check
// and cross-process change listener.
type storage struct {
	persistence.DocumentStore
	ping   func(context.Context) error
	listen func(context.Context) error
}

func (s storage) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.WarnContext(ctx, "using in-memory store; data is lost on exit")
		return storage{DocumentStore: memory.New()}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.StoreDSN, logger)
		if err != nil {
			return storage{}, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return storage{}, fmt.Errorf("failed to apply migrations: %w", err)
		}
		return storage{DocumentStore: store, ping: store.Ping}, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.StoreDSN, logger)
		if err != nil {
			return storage{}, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store := postgres.New(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return storage{}, fmt.Errorf("failed to apply migrations: %w", err)
		}
		return storage{DocumentStore: store, ping: store.Ping, listen: store.Listen}, nil
	}
	return storage{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}
