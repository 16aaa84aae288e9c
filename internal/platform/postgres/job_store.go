package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/store"
)

// PostgresJobStore implements the store.JobStore interface using PostgreSQL.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgresJobStore.
// If logger is nil, the default logger is used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "postgres_job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore.
var _ store.JobStore = (*PostgresJobStore)(nil)

// Create saves a new job to the database.
// Returns store.ErrDuplicate if a job with the same ID already exists and
// a validation error wrapped in store.ErrInvalidEntity for bad job data.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (id, video_id, mode, status, completed_batches,
			total_batches, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.VideoID,
		string(job.Mode),
		string(job.Status),
		job.CompletedBatches,
		job.TotalBatches,
		job.LastError,
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: job %s", store.ErrDuplicate, job.ID)
		}
		s.logger.Error("failed to create job", "job_id", job.ID, "error", err)
		return fmt.Errorf("failed to create job: %w", MapError(err))
	}

	return nil
}

// GetByID retrieves a job by its unique ID.
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := selectJobQuery + ` WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		s.logger.Error("failed to get job", "job_id", id, "error", err)
		return nil, fmt.Errorf("failed to get job: %w", MapError(err))
	}

	return job, nil
}

// Update saves changes to an existing job.
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) Update(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE jobs
		SET video_id = $2, mode = $3, status = $4, completed_batches = $5,
			total_batches = $6, last_error = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.VideoID,
		string(job.Mode),
		string(job.Status),
		job.CompletedBatches,
		job.TotalBatches,
		job.LastError,
		time.Now().UTC(),
	)
	if err != nil {
		s.logger.Error("failed to update job", "job_id", job.ID, "error", err)
		return fmt.Errorf("failed to update job: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrJobNotFound)
}

// UpdateStatus updates the status and last error of an existing job.
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	errorMsg string,
) error {
	query := `
		UPDATE jobs
		SET status = $2, last_error = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, string(status), errorMsg, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to update job status",
			"job_id", id,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update job status: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrJobNotFound)
}

// GetPending retrieves all jobs with "pending" status, oldest first.
func (s *PostgresJobStore) GetPending(ctx context.Context) ([]*domain.Job, error) {
	query := selectJobQuery + ` WHERE status = $1 ORDER BY created_at`

	return s.queryJobs(ctx, query, string(domain.JobStatusPending))
}

// GetInProgress retrieves jobs with "in_progress" status. If olderThan is
// non-zero, only jobs last updated before now minus olderThan are returned.
func (s *PostgresJobStore) GetInProgress(
	ctx context.Context,
	olderThan time.Duration,
) ([]*domain.Job, error) {
	if olderThan > 0 {
		query := selectJobQuery + ` WHERE status = $1 AND updated_at < $2 ORDER BY created_at`
		cutoff := time.Now().UTC().Add(-olderThan)
		return s.queryJobs(ctx, query, string(domain.JobStatusInProgress), cutoff)
	}

	query := selectJobQuery + ` WHERE status = $1 ORDER BY created_at`
	return s.queryJobs(ctx, query, string(domain.JobStatusInProgress))
}

// Delete removes a job from the database.
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM jobs
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		s.logger.Error("failed to delete job", "job_id", id, "error", err)
		return fmt.Errorf("failed to delete job: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrJobNotFound)
}

const selectJobQuery = `
	SELECT id, video_id, mode, status, completed_batches, total_batches,
		last_error, created_at, updated_at
	FROM jobs`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var mode, status string

	err := row.Scan(
		&job.ID,
		&job.VideoID,
		&mode,
		&status,
		&job.CompletedBatches,
		&job.TotalBatches,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Mode = domain.WorkflowMode(mode)
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func (s *PostgresJobStore) queryJobs(
	ctx context.Context,
	query string,
	args ...any,
) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to query jobs", "error", err)
		return nil, fmt.Errorf("failed to query jobs: %w", MapError(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", "error", closeErr)
		}
	}()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", MapError(err))
	}

	return jobs, nil
}
