package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/ledgersync/service/config"
)

// OpenBackend opens the slot selected by cfg.QueueBackend. The returned
// close func releases the backend and is never nil.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Slot, func(), error) {
	switch cfg.QueueBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory queue storage, queued writes will not survive a restart")
		return NewMemorySlot(), func() {}, nil

	case config.BackendPostgres:
		slot, pool, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to postgres queue storage")
		return slot, pool.Close, nil

	case config.BackendSQLite:
		slot, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened sqlite queue storage", "path", cfg.SQLitePath)
		return slot, func() {
			if err := slot.Close(); err != nil {
				logger.Error("failed to close sqlite queue storage", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}
