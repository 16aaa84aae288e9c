package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storyloom/storyboard-api/internal/domain"
)

// JobStore defines the interface for job lifecycle persistence.
// Version: 1.0
type JobStore interface {
	// Create saves a new job to the store.
	// It handles domain validation internally.
	// Returns ErrDuplicate if a job with the same ID already exists.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Update saves changes to an existing job.
	// Returns ErrJobNotFound if the job does not exist.
	// Returns validation errors if the job data is invalid.
	Update(ctx context.Context, job *domain.Job) error

	// UpdateStatus updates the status and last error of an existing job.
	// Returns ErrJobNotFound if the job does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMsg string) error

	// GetPending retrieves all jobs with "pending" status.
	GetPending(ctx context.Context) ([]*domain.Job, error)

	// GetInProgress retrieves jobs with "in_progress" status.
	// If olderThan is non-zero, only returns jobs that have been in this
	// state longer than the specified duration.
	GetInProgress(ctx context.Context, olderThan time.Duration) ([]*domain.Job, error)

	// Delete removes a job from the store.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
