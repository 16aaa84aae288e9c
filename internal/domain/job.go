package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the processing state of a storyboard generation job.
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// WorkflowMode selects how much detail the generation phases produce.
type WorkflowMode string

// Possible workflow modes
const (
	WorkflowModeStandard WorkflowMode = "standard"
	WorkflowModeDetailed WorkflowMode = "detailed"
)

// Common validation errors for Job
var (
	ErrEmptyJobID           = errors.New("job ID cannot be empty")
	ErrEmptyJobVideoID      = errors.New("job video ID cannot be empty")
	ErrInvalidJobStatus     = errors.New("invalid job status")
	ErrInvalidWorkflowMode  = errors.New("invalid workflow mode")
	ErrInvalidBatchCount    = errors.New("total batches must be positive")
	ErrBatchProgressInvalid = errors.New("completed batches cannot exceed total batches")
)

// Job represents one storyboard generation run against a source video.
// It tracks batch-level progress so an interrupted run can be resumed
// from its last recorded checkpoint.
type Job struct {
	ID               uuid.UUID    `json:"id"`
	VideoID          string       `json:"video_id"`
	Mode             WorkflowMode `json:"mode"`
	Status           JobStatus    `json:"status"`
	CompletedBatches int          `json:"completed_batches"`
	TotalBatches     int          `json:"total_batches"`
	LastError        string       `json:"last_error,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// NewJob creates a new Job for the given source video.
// It generates a new UUID for the job ID, sets the status to pending,
// and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewJob(videoID string, mode WorkflowMode, totalBatches int) (*Job, error) {
	job := &Job{
		ID:           uuid.New(),
		VideoID:      videoID,
		Mode:         mode,
		Status:       JobStatusPending,
		TotalBatches: totalBatches,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
// Returns an error if any field fails validation.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.VideoID == "" {
		return ErrEmptyJobVideoID
	}

	if !isValidWorkflowMode(j.Mode) {
		return ErrInvalidWorkflowMode
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.TotalBatches < 1 {
		return ErrInvalidBatchCount
	}

	if j.CompletedBatches < 0 || j.CompletedBatches > j.TotalBatches {
		return ErrBatchProgressInvalid
	}

	return nil
}

// UpdateStatus updates the job's status and the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (j *Job) UpdateStatus(status JobStatus) error {
	if !isValidJobStatus(status) {
		return ErrInvalidJobStatus
	}

	j.Status = status
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordProgress updates the count of completed batches and the
// UpdatedAt timestamp. Returns an error if the count is out of range.
func (j *Job) RecordProgress(completedBatches int) error {
	if completedBatches < 0 || completedBatches > j.TotalBatches {
		return ErrBatchProgressInvalid
	}

	j.CompletedBatches = completedBatches
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// IsTerminal reports whether the job has reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// isValidWorkflowMode checks if the given mode is a valid WorkflowMode.
func isValidWorkflowMode(mode WorkflowMode) bool {
	switch mode {
	case WorkflowModeStandard, WorkflowModeDetailed:
		return true
	default:
		return false
	}
}
