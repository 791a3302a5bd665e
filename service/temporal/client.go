package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// createSyncSchedule creates a new Temporal schedule that sweeps the device's queue.
func (c *Client) createSyncSchedule(ctx context.Context, deviceID string, interval time.Duration) error {
	id := scheduleID(deviceID)

	workflowAction := client.ScheduleWorkflowAction{
		ID:        "sync-queue-run-" + deviceID,
		Workflow:  SyncQueueWorkflow,
		TaskQueue: c.taskQueue,
		Args:      []interface{}{SyncQueueInput{DeviceID: deviceID}},
	}

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &workflowAction,
		// a sweep that overruns the interval is not stacked
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		Memo: map[string]interface{}{
			"device_id":  deviceID,
			"created_by": "ledgersync",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule",
			"device_id", deviceID,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("sync schedule created",
		"device_id", deviceID,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// UpsertSyncSchedule creates or updates the device's sync schedule.
// If the schedule already exists, only its interval is changed.
func (c *Client) UpsertSyncSchedule(ctx context.Context, deviceID string, interval time.Duration) error {
	id := scheduleID(deviceID)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		return c.createSyncSchedule(ctx, deviceID, interval)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update schedule",
			"device_id", deviceID,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("sync schedule updated",
		"device_id", deviceID,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// DeleteSyncSchedule deletes the device's sync schedule.
func (c *Client) DeleteSyncSchedule(ctx context.Context, deviceID string) error {
	id := scheduleID(deviceID)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"device_id", deviceID,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("sync schedule deleted", "device_id", deviceID, "schedule_id", id)
	return nil
}

// TriggerSync starts a sweep immediately, outside the schedule.
func (c *Client) TriggerSync(ctx context.Context, deviceID string) error {
	handle := c.client.ScheduleClient().GetHandle(ctx, scheduleID(deviceID))
	if err := handle.Trigger(ctx, client.ScheduleTriggerOptions{}); err != nil {
		return fmt.Errorf("failed to trigger schedule %q: %w", scheduleID(deviceID), err)
	}
	return nil
}

// ScheduleInfo summarizes a device's sync schedule.
type ScheduleInfo struct {
	ID            string          `json:"id"`
	Paused        bool            `json:"paused"`
	Note          string          `json:"note,omitempty"`
	TaskQueue     string          `json:"task_queue,omitempty"`
	Intervals     []time.Duration `json:"intervals"`
	RecentActions int             `json:"recent_actions"`
	LastActionAt  *time.Time      `json:"last_action_at,omitempty"`
	NextActionAt  *time.Time      `json:"next_action_at,omitempty"`
}

// DescribeSyncSchedule returns the state of the device's sync schedule.
func (c *Client) DescribeSyncSchedule(ctx context.Context, deviceID string) (*ScheduleInfo, error) {
	id := scheduleID(deviceID)
	desc, err := c.client.ScheduleClient().GetHandle(ctx, id).Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe schedule %q: %w", id, err)
	}

	info := &ScheduleInfo{ID: id}
	if state := desc.Schedule.State; state != nil {
		info.Paused = state.Paused
		info.Note = state.Note
	}
	if wa, ok := desc.Schedule.Action.(*client.ScheduleWorkflowAction); ok {
		info.TaskQueue = wa.TaskQueue
	}
	if spec := desc.Schedule.Spec; spec != nil {
		for _, interval := range spec.Intervals {
			info.Intervals = append(info.Intervals, interval.Every)
		}
	}
	info.RecentActions = len(desc.Info.RecentActions)
	if n := len(desc.Info.RecentActions); n > 0 {
		last := desc.Info.RecentActions[n-1].ActualTime
		info.LastActionAt = &last
	}
	if len(desc.Info.NextActionTimes) > 0 {
		next := desc.Info.NextActionTimes[0]
		info.NextActionAt = &next
	}
	return info, nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
