package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler manages the Temporal schedules that trigger sync sweeps.
// Each device gets its own schedule running SyncQueueWorkflow.
type Scheduler interface {
	// UpsertSyncSchedule creates the device's schedule or updates its interval.
	UpsertSyncSchedule(ctx context.Context, deviceID string, interval time.Duration) error

	// DeleteSyncSchedule stops scheduled sweeps for the device.
	DeleteSyncSchedule(ctx context.Context, deviceID string) error
}

// scheduleID returns the Temporal schedule ID for a device.
func scheduleID(deviceID string) string {
	return "sync-queue-" + deviceID
}

// ApplySyncSchedule makes the device's schedule match interval. A zero or
// negative interval removes the schedule; a missing schedule is not an error
// in that case.
func ApplySyncSchedule(ctx context.Context, s Scheduler, deviceID string, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		if err := s.DeleteSyncSchedule(ctx, deviceID); err != nil {
			logger.Debug("no sync schedule to delete", "device_id", deviceID, "error", err)
		}
		logger.Info("scheduled sweeps disabled", "device_id", deviceID)
		return nil
	}

	if err := s.UpsertSyncSchedule(ctx, deviceID, interval); err != nil {
		return fmt.Errorf("failed to apply sync schedule: %w", err)
	}
	logger.Info("sync schedule applied", "device_id", deviceID, "interval", interval)
	return nil
}
