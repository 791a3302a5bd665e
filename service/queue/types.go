package queue

import (
	"context"
	"time"

	"github.com/brojonat/ledgersync/service/ledger"
)

// QueuedWrite is one durable record of a create-transaction request that
// could not go straight to the network.
type QueuedWrite struct {
	ID         string                  `json:"id"`
	Payload    ledger.TransactionInput `json:"payload"`
	CreatedAt  time.Time               `json:"created_at"`
	RetryCount int                     `json:"retry_count"`
	LastError  string                  `json:"last_error,omitempty"`
}

// IdempotencyKey is the key sent with every replay of this write. A request
// id minted by the online path wins so a create that reached the server
// before the fallback is not duplicated.
func (w QueuedWrite) IdempotencyKey() string {
	if w.Payload.RequestID != "" {
		return w.Payload.RequestID
	}
	return w.ID
}

// Status is the aggregate queue state shown to a UI.
type Status struct {
	Count             int        `json:"count"`
	IsSyncing         bool       `json:"is_syncing"`
	LastSyncError     string     `json:"last_sync_error,omitempty"`
	LastSyncAttemptAt *time.Time `json:"last_sync_attempt_at,omitempty"`
}

// SkipReason explains why a sweep made no network calls.
type SkipReason string

const (
	SkipAlreadySyncing   SkipReason = "already_syncing"
	SkipEmpty            SkipReason = "empty"
	SkipNotAuthenticated SkipReason = "not_authenticated"
)

// SyncResult summarizes one call to Engine.Sync.
type SyncResult struct {
	Attempted int        `json:"attempted"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Skipped   SkipReason `json:"skipped,omitempty"`
}

// SyncedWrite announces that a queued write landed on the server.
type SyncedWrite struct {
	QueuedID    string                  `json:"queued_id"`
	Payload     ledger.TransactionInput `json:"payload"`
	Transaction *ledger.Transaction     `json:"transaction"`
	SyncedAt    time.Time               `json:"synced_at"`
}

// SyncObserver is told about every successful replay. Observers run on the
// sweeping goroutine after the item has been removed from the queue.
type SyncObserver interface {
	OnWriteSynced(ctx context.Context, w SyncedWrite)
}

// ObserverFunc adapts a function to SyncObserver.
type ObserverFunc func(ctx context.Context, w SyncedWrite)

func (f ObserverFunc) OnWriteSynced(ctx context.Context, w SyncedWrite) { f(ctx, w) }

// Store is the durable mirror of the queue.
type Store interface {
	Load(ctx context.Context) ([]QueuedWrite, error)
	Save(ctx context.Context, items []QueuedWrite) error
	Clear(ctx context.Context) error
}

// Remote is the subset of the finance API a sweep replays against.
type Remote interface {
	CreateTransaction(ctx context.Context, input ledger.TransactionInput, idempotencyKey string) (string, error)
	GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error)
}

// Credentials exposes the bearer credential checked before a sweep.
type Credentials interface {
	Token() (string, bool)
}
