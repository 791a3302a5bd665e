package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SyncQueueWorkflow is triggered by a per-device Temporal schedule and runs
// one sweep of the offline queue. Failed items are retried by the next
// scheduled run, not by activity retries.
func SyncQueueWorkflow(ctx workflow.Context, input SyncQueueInput) (*SyncQueueResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SyncQueueWorkflow started", "device_id", input.DeviceID)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeNotAuthenticated},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var result *SyncQueueResult
	if err := workflow.ExecuteActivity(ctx, a.SyncQueue, input).Get(ctx, &result); err != nil {
		logger.Error("sync activity failed", "device_id", input.DeviceID, "error", err)
		return nil, fmt.Errorf("failed to sync queue: %w", err)
	}

	logger.Info("SyncQueueWorkflow completed",
		"device_id", input.DeviceID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"remaining", result.Remaining,
	)
	return result, nil
}
