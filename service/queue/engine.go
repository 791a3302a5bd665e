package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/ledgersync/service/ledger"
	"github.com/brojonat/ledgersync/service/metrics"
)

const (
	// MaxRetryWarnThreshold is the retry count at which a failing write is
	// logged at WARN. The write stays queued and keeps being retried.
	MaxRetryWarnThreshold = 3

	// NotAuthenticatedMessage is the aggregate error of a sweep that found no
	// credential.
	NotAuthenticatedMessage = "Not authenticated"

	syncFailedTemplate = "%d transaction(s) failed to sync"
)

// Engine owns the in-memory queue and its durable mirror, and drains the
// queue against the remote API one item at a time.
type Engine struct {
	store   Store
	remote  Remote
	creds   Credentials
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu                sync.Mutex
	items             []QueuedWrite
	isSyncing         bool
	lastSyncError     string
	lastSyncAttemptAt *time.Time
	observers         []SyncObserver
	// generation is bumped by ResetAll; a sweep started under an older
	// generation no longer owns the syncing flag or the retry metadata.
	generation uint64
}

// NewEngine creates an engine with an empty queue. Call LoadFromStorage to
// restore writes queued by a previous process.
// If metrics is nil, no metrics will be recorded.
func NewEngine(store Store, remote Remote, creds Credentials, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Engine{
		store:   store,
		remote:  remote,
		creds:   creds,
		metrics: m,
		logger:  logger.With("component", "queue"),
		now:     time.Now,
	}
}

// Subscribe registers an observer for successful replays.
func (e *Engine) Subscribe(o SyncObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Enqueue appends a new write and returns its pending id. Persistence is
// best effort: a failed save is logged and the write stays queued in memory.
func (e *Engine) Enqueue(ctx context.Context, payload ledger.TransactionInput) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	item := QueuedWrite{
		ID:        NewPendingID(now),
		Payload:   payload,
		CreatedAt: now,
	}
	e.items = append(e.items, item)
	e.lastSyncError = ""
	e.persistLocked(ctx, "enqueue")

	if e.metrics != nil {
		e.metrics.RecordEnqueue()
	}
	e.logger.InfoContext(ctx, "write queued",
		"id", item.ID,
		"account_id", payload.AccountID,
		"queue_length", len(e.items),
	)
	return item.ID
}

// Dequeue removes the write with the given id. Unknown ids are ignored and
// nothing is persisted for them.
func (e *Engine) Dequeue(ctx context.Context, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.items {
		if e.items[i].ID == id {
			e.items = append(e.items[:i:i], e.items[i+1:]...)
			e.persistLocked(ctx, "dequeue")
			return
		}
	}
}

// Sync runs one sweep over the queue. It is a no-op when a sweep is already
// running or the queue is empty, and aborts before any network call when no
// credential is available.
//
// Items are replayed oldest first, sequentially, from a snapshot taken when
// the sweep starts. A failing item is kept in place with its retry count
// bumped and the sweep moves on. Cancelling ctx does not stop a running
// sweep.
func (e *Engine) Sync(ctx context.Context) SyncResult {
	e.mu.Lock()
	if e.isSyncing {
		e.mu.Unlock()
		e.recordSkip(ctx, SkipAlreadySyncing)
		return SyncResult{Skipped: SkipAlreadySyncing}
	}
	if len(e.items) == 0 {
		e.mu.Unlock()
		e.recordSkip(ctx, SkipEmpty)
		return SyncResult{Skipped: SkipEmpty}
	}

	e.isSyncing = true
	e.lastSyncError = ""
	gen := e.generation
	now := e.now()
	e.lastSyncAttemptAt = &now

	if !e.authenticated() {
		e.isSyncing = false
		e.lastSyncError = NotAuthenticatedMessage
		e.mu.Unlock()
		e.recordSkip(ctx, SkipNotAuthenticated)
		return SyncResult{Skipped: SkipNotAuthenticated}
	}

	snapshot := make([]QueuedWrite, len(e.items))
	copy(snapshot, e.items)
	e.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	logger := e.logger.With("sweep_size", len(snapshot))
	logger.InfoContext(ctx, "sync sweep started")

	var result SyncResult
	for _, item := range snapshot {
		if !e.current(gen) {
			logger.InfoContext(ctx, "queue reset during sweep, stopping")
			break
		}
		// dropped by the user while an earlier item was replaying
		if !e.contains(item.ID) {
			logger.DebugContext(ctx, "skipping write removed during sweep", "id", item.ID)
			continue
		}

		result.Attempted++
		itemStart := time.Now()
		txn, err := e.replay(ctx, item)
		if err != nil {
			result.Failed++
			e.recordFailure(ctx, gen, item.ID, err)
			if e.metrics != nil {
				e.metrics.RecordSyncItem("failed", time.Since(itemStart).Seconds())
			}
			continue
		}

		result.Succeeded++
		e.Dequeue(ctx, item.ID)
		if e.metrics != nil {
			e.metrics.RecordSyncItem("synced", time.Since(itemStart).Seconds())
		}
		logger.InfoContext(ctx, "write synced", "id", item.ID, "transaction_id", txn.ID)
		e.notify(ctx, SyncedWrite{
			QueuedID:    item.ID,
			Payload:     item.Payload,
			Transaction: txn,
			SyncedAt:    e.now(),
		})
	}

	e.mu.Lock()
	if e.generation != gen {
		remaining := len(e.items)
		e.mu.Unlock()
		logger.InfoContext(ctx, "stale sync sweep finished",
			"attempted", result.Attempted,
			"succeeded", result.Succeeded,
			"failed", result.Failed,
			"remaining", remaining,
		)
		return result
	}
	e.isSyncing = false
	failing := 0
	for _, item := range e.items {
		if item.LastError != "" {
			failing++
		}
	}
	if failing > 0 {
		e.lastSyncError = fmt.Sprintf(syncFailedTemplate, failing)
	} else {
		e.lastSyncError = ""
	}
	remaining := len(e.items)
	e.mu.Unlock()

	duration := time.Since(start)
	if e.metrics != nil {
		outcome := "completed"
		if result.Failed > 0 {
			outcome = "partial_failure"
		}
		e.metrics.RecordSyncSweep(outcome, duration.Seconds())
	}
	logger.InfoContext(ctx, "sync sweep finished",
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"remaining", remaining,
		"duration", duration,
	)
	return result
}

// replay submits the payload then reads the created record back. Only a
// round-tripped record counts as success.
func (e *Engine) replay(ctx context.Context, item QueuedWrite) (*ledger.Transaction, error) {
	id, err := e.remote.CreateTransaction(ctx, item.Payload, item.IdempotencyKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	txn, err := e.remote.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm transaction %s: %w", id, err)
	}
	return txn, nil
}

// recordFailure bumps the retry metadata of the current copy of the item.
// Nothing is written for a sweep from before a reset.
func (e *Engine) recordFailure(ctx context.Context, gen uint64, id string, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		return
	}

	for i := range e.items {
		if e.items[i].ID != id {
			continue
		}
		e.items[i].RetryCount++
		e.items[i].LastError = cause.Error()
		retries := e.items[i].RetryCount
		e.persistLocked(ctx, "retry_update")

		if retries >= MaxRetryWarnThreshold {
			e.logger.WarnContext(ctx, "queued write keeps failing",
				"id", id,
				"retry_count", retries,
				"threshold", MaxRetryWarnThreshold,
				"error", cause,
			)
			if e.metrics != nil {
				e.metrics.RecordRetryThresholdExceeded()
			}
		} else {
			e.logger.InfoContext(ctx, "queued write failed to sync",
				"id", id,
				"retry_count", retries,
				"error", cause,
			)
		}
		return
	}
}

// LoadFromStorage replaces the queue with the durable copy. On failure the
// error is logged and the in-memory queue is left as is.
func (e *Engine) LoadFromStorage(ctx context.Context) {
	items, err := e.store.Load(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to load queue from storage", "error", err)
		if e.metrics != nil {
			e.metrics.RecordStorageError("load")
		}
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = items
	if e.metrics != nil {
		e.metrics.SetQueueDepth(len(e.items))
	}
	e.logger.InfoContext(ctx, "queue restored from storage", "queue_length", len(items))
}

// Count returns the number of queued writes. Like Items and Status it takes
// the engine lock, so it waits for a durable save in progress.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Items returns a copy of the queue, oldest first.
func (e *Engine) Items() []QueuedWrite {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]QueuedWrite, len(e.items))
	copy(out, e.items)
	return out
}

// Status returns the aggregate queue state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Status{
		Count:         len(e.items),
		IsSyncing:     e.isSyncing,
		LastSyncError: e.lastSyncError,
	}
	if e.lastSyncAttemptAt != nil {
		t := *e.lastSyncAttemptAt
		s.LastSyncAttemptAt = &t
	}
	return s
}

// ResetAll clears durable storage and every piece of in-memory state. It is
// meant for logout; a storage failure is logged and the reset still happens.
// A sweep still running stops before its next item and leaves the syncing
// flag to any sweep started after the reset.
func (e *Engine) ResetAll(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Clear(ctx); err != nil {
		e.logger.ErrorContext(ctx, "failed to clear queue storage", "error", err)
		if e.metrics != nil {
			e.metrics.RecordStorageError("clear")
		}
	}
	e.items = nil
	e.generation++
	e.isSyncing = false
	e.lastSyncError = ""
	e.lastSyncAttemptAt = nil
	if e.metrics != nil {
		e.metrics.SetQueueDepth(0)
	}
	e.logger.InfoContext(ctx, "queue reset")
}

// persistLocked saves the full queue. Callers hold e.mu so saves land in
// mutation order. A failed save leaves memory ahead of storage until the
// next successful save.
func (e *Engine) persistLocked(ctx context.Context, operation string) {
	if e.metrics != nil {
		e.metrics.SetQueueDepth(len(e.items))
	}
	items := make([]QueuedWrite, len(e.items))
	copy(items, e.items)
	if err := e.store.Save(ctx, items); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist queue",
			"operation", operation,
			"queue_length", len(items),
			"error", err,
		)
		if e.metrics != nil {
			e.metrics.RecordStorageError(operation)
		}
	}
}

func (e *Engine) authenticated() bool {
	if e.creds == nil {
		return false
	}
	token, ok := e.creds.Token()
	return ok && token != ""
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation == gen
}

func (e *Engine) contains(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, item := range e.items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (e *Engine) notify(ctx context.Context, w SyncedWrite) {
	e.mu.Lock()
	observers := make([]SyncObserver, len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()

	for _, o := range observers {
		o.OnWriteSynced(ctx, w)
	}
}

func (e *Engine) recordSkip(ctx context.Context, reason SkipReason) {
	e.logger.DebugContext(ctx, "sync sweep skipped", "reason", string(reason))
	if e.metrics != nil {
		e.metrics.RecordSyncSweep("skipped_"+string(reason), 0)
	}
}
