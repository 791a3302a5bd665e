package temporal

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/worker"
)

// WorkerConfig wires the sweep activity to its dependencies.
type WorkerConfig struct {
	Syncer Syncer
	// Reload re-reads the queue from storage before every sweep.
	Reload bool
	Logger *slog.Logger
}

// Worker runs SyncQueueWorkflow and its activity on the client's task queue.
type Worker struct {
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker registers the sweep workflow on c's connection. The worker does
// not own c; closing c is left to the caller after Stop.
func NewWorker(c *Client, config WorkerConfig) (*Worker, error) {
	if config.Syncer == nil {
		return nil, fmt.Errorf("worker requires a syncer")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("component", "temporal_worker", "task_queue", c.taskQueue)

	// one sweep at a time; the engine would skip a second one anyway
	w := worker.New(c.client, c.taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     1,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(SyncQueueWorkflow)
	activities := NewActivities(config.Syncer, config.Reload, logger)
	w.RegisterActivity(activities.SyncQueue)
	logger.Info("registered sweep workflow", "workflow", "SyncQueueWorkflow", "activity", "SyncQueue", "reload", config.Reload)

	return &Worker{worker: w, logger: logger}, nil
}

// Start processes sweeps until Stop is called or the process is interrupted.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	if err := w.worker.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	w.logger.Info("worker stopped gracefully")
	return nil
}

// Stop waits for the in-flight sweep and stops polling.
func (w *Worker) Stop() {
	w.worker.Stop()
	w.logger.Info("temporal worker stopped")
}
