package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/ledgersync/service/queue"
)

// DefaultQueueKey is the slot key holding the offline transaction queue.
const DefaultQueueKey = "offline_transaction_queue"

// QueueStore persists the whole queue as one JSON array in a single slot.
// It implements queue.Store.
type QueueStore struct {
	slot   Slot
	key    string
	logger *slog.Logger
}

// NewQueueStore creates a store over slot. An empty key uses DefaultQueueKey.
func NewQueueStore(slot Slot, key string, logger *slog.Logger) *QueueStore {
	if key == "" {
		key = DefaultQueueKey
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &QueueStore{
		slot:   slot,
		key:    key,
		logger: logger.With("component", "queue_store", "key", key),
	}
}

// Load returns the persisted queue. Missing data, data that is not JSON,
// and JSON that is not an array all yield an empty queue; the last two are
// logged as warnings. Entries of an array that fail to decode are skipped
// with a warning and the rest are kept. Only a failing slot read is
// returned as an error.
func (s *QueueStore) Load(ctx context.Context) ([]queue.QueuedWrite, error) {
	data, ok, err := s.slot.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	if !ok || len(data) == 0 {
		return []queue.QueuedWrite{}, nil
	}

	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.WarnContext(ctx, "stored queue is not valid JSON, starting empty", "error", err)
		return []queue.QueuedWrite{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || elems == nil {
		s.logger.WarnContext(ctx, "stored queue is not an array, starting empty")
		return []queue.QueuedWrite{}, nil
	}

	items := make([]queue.QueuedWrite, 0, len(elems))
	for i, elem := range elems {
		var item queue.QueuedWrite
		if err := json.Unmarshal(elem, &item); err != nil {
			s.logger.WarnContext(ctx, "skipping malformed queue entry", "index", i, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Save overwrites the slot with items. Failures are returned.
func (s *QueueStore) Save(ctx context.Context, items []queue.QueuedWrite) error {
	if items == nil {
		items = []queue.QueuedWrite{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	if err := s.slot.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}
	return nil
}

// Clear removes the slot. Failures are returned.
func (s *QueueStore) Clear(ctx context.Context) error {
	if err := s.slot.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}
