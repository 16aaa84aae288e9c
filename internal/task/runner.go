package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/store"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckJobAge defines how long a job can be in the in_progress state
	// before it's considered stuck and reset
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs
	// If zero, defaults to 5 minutes
	StuckJobCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:           2,
		QueueSize:             100,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing. Jobs survive restarts in
// the job store; the runner rebuilds its in-memory queue from there on
// startup and resets jobs that were interrupted mid-flight.
type TaskRunner struct {
	jobs       store.JobStore
	factory    TaskFactory
	queue      *TaskQueue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(
	jobs store.JobStore,
	factory TaskFactory,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	// Apply default check interval if not specified
	if config.StuckJobCheckInterval == 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		jobs:       jobs,
		factory:    factory,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		wg:         sync.WaitGroup{},
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit adds a new task to the queue. The backing job must already be
// persisted in the job store by the caller.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Start initializes the worker pool and begins processing tasks
func (r *TaskRunner) Start() error {
	// Recover unfinished jobs from previous runs
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	// Start worker goroutines
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	// Start goroutine to check for stuck jobs periodically
	r.wg.Add(1)
	go r.stuckJobMonitor()

	return nil
}

// Stop gracefully shuts down the task runner
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.queue.Close()
}

// Recover loads unfinished jobs from the job store and requeues them.
// Jobs interrupted mid-flight are reset to pending; their checkpoints let
// the rebuilt task resume instead of starting over.
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingJobs, err := r.jobs.GetPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}

	// Jobs that were in_progress were interrupted by a crash or restart
	inProgressJobs, err := r.jobs.GetInProgress(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get in-progress jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"pending_count", len(pendingJobs),
		"in_progress_count", len(inProgressJobs))

	for _, job := range pendingJobs {
		r.requeueJob(ctx, job)
	}

	for _, job := range inProgressJobs {
		if err := r.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset in-progress job status",
				"job_id", job.ID,
				"error", err)
			continue
		}
		r.requeueJob(ctx, job)
	}

	return nil
}

// requeueJob rebuilds a task for a persisted job and enqueues it.
func (r *TaskRunner) requeueJob(ctx context.Context, job *domain.Job) {
	task, err := r.factory.CreateTask(job)
	if err != nil {
		r.logger.Error("failed to rebuild task for job",
			"job_id", job.ID,
			"error", err)
		return
	}

	if err := r.queue.Enqueue(task); err != nil {
		r.logger.Error("failed to requeue job",
			"job_id", job.ID,
			"error", err)
	}
}

// worker processes tasks from the queue
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(task Task, workerID int) {
	ctx := context.Background()
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	// Mark the backing job as in progress
	if err := r.jobs.UpdateStatus(ctx, task.ID(), domain.JobStatusInProgress, ""); err != nil {
		logger.Error("failed to update job status to in_progress", "error", err)
		return
	}

	logger.Info("processing task")

	// Execution is tied to the runner's lifetime so Stop cancels
	// in-flight work. Status writes keep the background context so the
	// final state is still persisted during shutdown.
	err := task.Execute(r.ctx)

	if err != nil {
		logger.Error("task execution failed", "error", err)
		if updateErr := r.jobs.UpdateStatus(ctx, task.ID(), domain.JobStatusFailed, err.Error()); updateErr != nil {
			logger.Error("failed to update job status to failed", "error", updateErr)
		}

		r.errHandler(task, err)
	} else {
		logger.Info("task completed successfully")
		if updateErr := r.jobs.UpdateStatus(ctx, task.ID(), domain.JobStatusCompleted, ""); updateErr != nil {
			logger.Error("failed to update job status to completed", "error", updateErr)
		}
	}
}

// stuckJobMonitor periodically checks for jobs that have been in the
// in_progress state for too long and resets them
func (r *TaskRunner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuckJobs, err := r.jobs.GetInProgress(ctx, r.config.StuckJobAge)
			if err != nil {
				r.logger.Error("failed to check for stuck jobs", "error", err)
				continue
			}

			if len(stuckJobs) == 0 {
				continue
			}

			r.logger.Info("found stuck jobs", "count", len(stuckJobs))

			for _, job := range stuckJobs {
				if err := r.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusPending,
					"Reset after being stuck in progress"); err != nil {
					r.logger.Error("failed to reset stuck job status",
						"job_id", job.ID,
						"error", err)
					continue
				}

				r.requeueJob(ctx, job)
			}
		}
	}
}
