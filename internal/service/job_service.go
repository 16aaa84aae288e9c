package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/events"
	"github.com/storyloom/storyboard-api/internal/store"
	"github.com/storyloom/storyboard-api/internal/task"
)

// Common sentinel errors for JobService
var (
	// ErrJobNotFound indicates that the job does not exist
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotDeletable indicates the job is still running and cannot be
	// removed yet
	ErrJobNotDeletable = errors.New("job is still in progress")
)

// JobServiceError wraps errors from the job service with context.
type JobServiceError struct {
	// Operation is the operation that failed (e.g., "create_job")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for JobServiceError.
func (e *JobServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("job service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *JobServiceError) Unwrap() error {
	return e.Err
}

// NewJobServiceError creates a new JobServiceError.
// It returns known sentinel errors directly without wrapping.
func NewJobServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrJobNotDeletable) {
		return err
	}

	// Map store-level sentinels to service-level ones
	if errors.Is(err, store.ErrJobNotFound) {
		return ErrJobNotFound
	}

	return &JobServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// JobService provides job-related operations
type JobService interface {
	// CreateJobAndEnqueue persists a new storyboard generation job and
	// emits the event that gets it picked up for background processing
	CreateJobAndEnqueue(
		ctx context.Context,
		videoID string,
		mode domain.WorkflowMode,
		totalBatches int,
	) (*domain.Job, error)

	// GetJob retrieves a job by its ID
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	// DeleteJob removes a finished or pending job. Jobs that are still in
	// progress cannot be deleted.
	DeleteJob(ctx context.Context, jobID uuid.UUID) error
}

// jobServiceImpl implements the JobService interface
type jobServiceImpl struct {
	jobs         store.JobStore
	eventEmitter events.EventEmitter
	logger       *slog.Logger
}

// NewJobService creates a new JobService.
// It returns an error if any of the required dependencies are nil.
func NewJobService(
	jobs store.JobStore,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
) (JobService, error) {
	if jobs == nil {
		return nil, &JobServiceError{
			Operation: "create_service",
			Message:   "jobs cannot be nil",
		}
	}
	if eventEmitter == nil {
		return nil, &JobServiceError{
			Operation: "create_service",
			Message:   "eventEmitter cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &jobServiceImpl{
		jobs:         jobs,
		eventEmitter: eventEmitter,
		logger:       logger.With("component", "job_service"),
	}, nil
}

// CreateJobAndEnqueue creates a new job with pending status and emits an
// event for processing. If the event emission fails the job stays pending;
// the runner's recovery pass picks it up on the next start.
func (s *jobServiceImpl) CreateJobAndEnqueue(
	ctx context.Context,
	videoID string,
	mode domain.WorkflowMode,
	totalBatches int,
) (*domain.Job, error) {
	job, err := domain.NewJob(videoID, mode, totalBatches)
	if err != nil {
		s.logger.Error("failed to create job object",
			"error", err,
			"video_id", videoID)
		return nil, NewJobServiceError("create_job", "failed to create job object", err)
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			"error", err,
			"job_id", job.ID)
		return nil, NewJobServiceError("create_job", "failed to save job", err)
	}

	event, err := events.NewJobEvent(task.TaskTypeStoryboardGeneration, job.ID)
	if err != nil {
		s.logger.Error("failed to build task request event",
			"error", err,
			"job_id", job.ID)
		return job, nil
	}

	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		// Not fatal: the job is persisted as pending and recovery will
		// requeue it.
		s.logger.Error("failed to emit task request event",
			"error", err,
			"job_id", job.ID)
	}

	s.logger.Info("job created and enqueued",
		"job_id", job.ID,
		"video_id", videoID,
		"total_batches", totalBatches)
	return job, nil
}

// GetJob retrieves a job by its ID
func (s *jobServiceImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, NewJobServiceError("get_job", "failed to load job", err)
	}
	return job, nil
}

// DeleteJob removes a job that is not currently being processed.
func (s *jobServiceImpl) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return NewJobServiceError("delete_job", "failed to load job", err)
	}

	if job.Status == domain.JobStatusInProgress {
		return ErrJobNotDeletable
	}

	if err := s.jobs.Delete(ctx, jobID); err != nil {
		return NewJobServiceError("delete_job", "failed to delete job", err)
	}

	s.logger.Info("job deleted", "job_id", jobID)
	return nil
}
