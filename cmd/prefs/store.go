package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/prefstate/internal/config"
	"github.com/kalambet/prefstate/pkg/datastore"
	"github.com/kalambet/prefstate/pkg/datastore/memstore"
	"github.com/kalambet/prefstate/pkg/datastore/sqlitestore"
	"github.com/kalambet/prefstate/pkg/datastore/yamlstore"
)

// openStore opens the configured backend. watch starts following changes
// made by other processes; one-shot commands leave it off.
func openStore(ctx context.Context, watch bool) (*datastore.Store, error) {
	var (
		backend datastore.Backend
		err     error
	)
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		backend, err = sqlitestore.Open(cfg.Store.Path)
	case config.DriverYAML:
		backend, err = yamlstore.New(cfg.StoreFile(), yamlstore.WithLogger(slog.Default()))
	case config.DriverMemory:
		backend = memstore.New(nil)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	store, err := datastore.New(ctx, backend,
		datastore.WithLogger(slog.Default()),
		datastore.WithQueueSize(cfg.Store.QueueSize),
		datastore.WithWatch(watch && cfg.Store.Watch),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}
