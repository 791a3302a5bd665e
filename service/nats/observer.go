package nats

import (
	"context"
	"io"
	"log/slog"

	"github.com/brojonat/ledgersync/service/queue"
)

// SyncObserver publishes an event for every write a sweep confirms. Publish
// failures are logged; the write has already synced and stays synced.
type SyncObserver struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewSyncObserver wraps publisher as a queue.SyncObserver.
func NewSyncObserver(publisher Publisher, logger *slog.Logger) *SyncObserver {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &SyncObserver{publisher: publisher, logger: logger.With("component", "sync_observer")}
}

func (o *SyncObserver) OnWriteSynced(ctx context.Context, w queue.SyncedWrite) {
	event := FromSyncedWrite(w)
	if err := o.publisher.PublishSynced(ctx, event); err != nil {
		o.logger.ErrorContext(ctx, "failed to publish sync event",
			"queued_id", w.QueuedID,
			"account_id", event.AccountID,
			"error", err,
		)
	}
}
