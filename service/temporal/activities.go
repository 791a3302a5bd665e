package temporal

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/ledgersync/service/queue"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// SyncQueueInput contains the input parameters for one scheduled sweep.
type SyncQueueInput struct {
	DeviceID string `json:"device_id"`
}

// SyncQueueResult contains the result of one scheduled sweep.
type SyncQueueResult struct {
	DeviceID      string           `json:"device_id"`
	Attempted     int              `json:"attempted"`
	Succeeded     int              `json:"succeeded"`
	Failed        int              `json:"failed"`
	Skipped       queue.SkipReason `json:"skipped,omitempty"`
	Remaining     int              `json:"remaining"`
	LastSyncError string           `json:"last_sync_error,omitempty"`
	SyncTime      time.Time        `json:"sync_time"`
}

// ErrTypeNotAuthenticated is the application error type of a sweep that
// found no credential. It is not retried.
const ErrTypeNotAuthenticated = "NotAuthenticated"

// Syncer is the queue engine surface the activity drives.
// This allows for easy mocking in tests.
type Syncer interface {
	LoadFromStorage(ctx context.Context)
	Sync(ctx context.Context) queue.SyncResult
	Status() queue.Status
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	syncer Syncer
	reload bool
	logger *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// With reload set, the queue is re-read from storage before every sweep; a
// headless worker needs this to pick up writes queued by the agent since
// its last run.
func NewActivities(syncer Syncer, reload bool, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		syncer: syncer,
		reload: reload,
		logger: logger,
	}
}

// SyncQueue runs one sweep of the offline queue. Per-item failures are
// recorded on the queue and do not fail the activity.
func (a *Activities) SyncQueue(ctx context.Context, input SyncQueueInput) (*SyncQueueResult, error) {
	logger := a.logger.With("device_id", input.DeviceID)

	if a.reload {
		a.syncer.LoadFromStorage(ctx)
	}

	res := a.syncer.Sync(ctx)
	status := a.syncer.Status()

	result := &SyncQueueResult{
		DeviceID:      input.DeviceID,
		Attempted:     res.Attempted,
		Succeeded:     res.Succeeded,
		Failed:        res.Failed,
		Skipped:       res.Skipped,
		Remaining:     status.Count,
		LastSyncError: status.LastSyncError,
		SyncTime:      time.Now(),
	}

	if res.Skipped == queue.SkipNotAuthenticated {
		logger.WarnContext(ctx, "sync skipped, no credential", "remaining", status.Count)
		return nil, temporalsdk.NewNonRetryableApplicationError(
			queue.NotAuthenticatedMessage, ErrTypeNotAuthenticated, nil, result)
	}

	logger.InfoContext(ctx, "sync activity finished",
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"remaining", result.Remaining,
	)
	return result, nil
}
