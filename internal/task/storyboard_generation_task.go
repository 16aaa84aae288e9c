package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyboard-api/internal/checkpoint"
	"github.com/storyloom/storyboard-api/internal/dedup"
	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/generation"
	"github.com/storyloom/storyboard-api/internal/ratelimit"
	"github.com/storyloom/storyboard-api/internal/resultcache"
	"github.com/storyloom/storyboard-api/internal/store"
)

// Status constants for StoryboardGenerationTask
// These match the TaskStatus values defined in task.go
const (
	statusPending    = "pending"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusFailed     = "failed"
)

// Common errors
var (
	ErrNilJobStore    = errors.New("job store cannot be nil")
	ErrNilGenerator   = errors.New("generator cannot be nil")
	ErrNilCheckpoints = errors.New("checkpoint store cannot be nil")
	ErrNilResults     = errors.New("result cache cannot be nil")
	ErrNilDedup       = errors.New("dedup engine cannot be nil")
	ErrNilAdmission   = errors.New("admission controller cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
	ErrNilJob         = errors.New("job cannot be nil")
)

// AdmissionController gates outbound model calls. Implementations block
// until a call slot is available or the context is cancelled.
type AdmissionController interface {
	Admit(ctx context.Context, category ratelimit.Category) error
}

// GenerationSettings carries the tunables for one storyboard run.
type GenerationSettings struct {
	// BatchSize is the number of scenes requested per phase-2 batch.
	BatchSize int

	// DedupThreshold is the similarity threshold above which a generated
	// scene is treated as a duplicate and dropped.
	DedupThreshold float64
}

// StoryboardArtifact is the final payload cached for a completed job.
type StoryboardArtifact struct {
	JobID      string                `json:"job_id"`
	VideoID    string                `json:"video_id"`
	Mode       domain.WorkflowMode   `json:"mode"`
	Profile    json.RawMessage       `json:"profile,omitempty"`
	Confidence float64               `json:"confidence,omitempty"`
	Background string                `json:"background,omitempty"`
	Entities   []domain.Entity       `json:"entities,omitempty"`
	Scenes     []domain.Scene        `json:"scenes"`
	Registry   domain.EntityRegistry `json:"registry,omitempty"`
}

// storyboardGenerationPayload represents the serialized data stored in the task
type storyboardGenerationPayload struct {
	JobID   uuid.UUID `json:"job_id"`
	VideoID string    `json:"video_id"`
}

// StoryboardGenerationTask implements the Task interface for generating a
// storyboard from a source video. A run walks the three generation phases,
// checkpointing after each unit of work so an interrupted run resumes
// where it stopped rather than starting over.
type StoryboardGenerationTask struct {
	job         *domain.Job
	jobs        store.JobStore
	generator   generation.Generator
	checkpoints *checkpoint.Store
	results     *resultcache.Cache
	engine      *dedup.Engine
	admission   AdmissionController
	settings    GenerationSettings
	logger      *slog.Logger
	status      string // Using string instead of TaskStatus to avoid exposing internals
}

// NewStoryboardGenerationTask creates a new storyboard generation task for
// the given job. The task ID is the job ID so the runner's status updates
// land on the right job and recovery rebuilds an identical task.
func NewStoryboardGenerationTask(
	job *domain.Job,
	jobs store.JobStore,
	generator generation.Generator,
	checkpoints *checkpoint.Store,
	results *resultcache.Cache,
	engine *dedup.Engine,
	admission AdmissionController,
	settings GenerationSettings,
	logger *slog.Logger,
) (*StoryboardGenerationTask, error) {
	// Validate dependencies
	if job == nil {
		return nil, ErrNilJob
	}
	if jobs == nil {
		return nil, ErrNilJobStore
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if checkpoints == nil {
		return nil, ErrNilCheckpoints
	}
	if results == nil {
		return nil, ErrNilResults
	}
	if engine == nil {
		return nil, ErrNilDedup
	}
	if admission == nil {
		return nil, ErrNilAdmission
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	if settings.BatchSize < 1 {
		settings.BatchSize = 5
	}
	if settings.DedupThreshold <= 0 || settings.DedupThreshold > 1 {
		settings.DedupThreshold = dedup.DefaultThreshold
	}

	return &StoryboardGenerationTask{
		job:         job,
		jobs:        jobs,
		generator:   generator,
		checkpoints: checkpoints,
		results:     results,
		engine:      engine,
		admission:   admission,
		settings:    settings,
		logger:      logger.With("task_type", TaskTypeStoryboardGeneration, "job_id", job.ID),
		status:      statusPending,
	}, nil
}

// ID returns the task's unique identifier, which is the backing job's ID
func (t *StoryboardGenerationTask) ID() uuid.UUID {
	return t.job.ID
}

// Type returns the task type identifier
func (t *StoryboardGenerationTask) Type() string {
	return TaskTypeStoryboardGeneration
}

// Payload returns the task data as a byte slice
func (t *StoryboardGenerationTask) Payload() []byte {
	payload := storyboardGenerationPayload{
		JobID:   t.job.ID,
		VideoID: t.job.VideoID,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// If marshal fails, return an empty payload with error logged
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}

	return data
}

// Status returns the current task status
func (t *StoryboardGenerationTask) Status() TaskStatus {
	return TaskStatus(t.status)
}

// Execute runs the storyboard generation pipeline: phase 0 (profile
// analysis), phase 1 (entity extraction), then phase 2 scene batches. Each
// phase output is checkpointed before moving on; completed phases found in
// the checkpoint store are skipped. On success the assembled storyboard is
// written to the result cache and the job's checkpoints are cleared.
func (t *StoryboardGenerationTask) Execute(ctx context.Context) error {
	t.status = statusProcessing
	t.logger.Info("starting storyboard generation task")

	if err := ctx.Err(); err != nil {
		t.status = statusFailed
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	resume, err := t.checkpoints.Reconstruct(ctx, t.job.ID)
	if err != nil {
		t.status = statusFailed
		return fmt.Errorf("failed to reconstruct checkpoints: %w", err)
	}
	if resume == nil {
		resume = &checkpoint.ResumeData{}
	} else {
		t.logger.Info("resuming from checkpoints",
			"has_profile", resume.HasProfile,
			"has_entities", resume.HasEntities,
			"completed_batches", resume.CompletedBatches)
	}

	artifact, err := t.runPhases(ctx, resume)
	if err != nil {
		t.status = statusFailed
		return err
	}

	payload, err := json.Marshal(artifact)
	if err != nil {
		t.status = statusFailed
		return fmt.Errorf("failed to marshal storyboard artifact: %w", err)
	}

	err = t.results.Put(ctx, resultcache.Entry{
		ID:        t.job.ID.String(),
		ParentID:  t.job.VideoID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.status = statusFailed
		return fmt.Errorf("failed to cache storyboard result: %w", err)
	}

	// Checkpoints are only useful while the job can still be resumed.
	if err := t.checkpoints.Clear(ctx, t.job.ID); err != nil {
		// The result is already cached; log and move on.
		t.logger.Warn("failed to clear checkpoints after completion", "error", err)
	}

	t.status = statusCompleted
	t.logger.Info("storyboard generation task completed",
		"scene_count", len(artifact.Scenes))
	return nil
}

// runPhases executes the remaining generation phases and returns the
// assembled artifact.
func (t *StoryboardGenerationTask) runPhases(
	ctx context.Context,
	resume *checkpoint.ResumeData,
) (*StoryboardArtifact, error) {
	artifact := &StoryboardArtifact{
		JobID:   t.job.ID.String(),
		VideoID: t.job.VideoID,
		Mode:    t.job.Mode,
	}

	// Phase 0: profile analysis
	if resume.HasProfile {
		artifact.Profile = resume.Profile
		artifact.Confidence = resume.Confidence
	} else {
		if err := t.admission.Admit(ctx, ratelimit.CategoryGeneration); err != nil {
			return nil, fmt.Errorf("admission for profile analysis: %w", err)
		}

		profile, err := t.generator.GenerateProfile(ctx, t.job.VideoID)
		if err != nil {
			return nil, fmt.Errorf("profile analysis failed: %w", err)
		}

		if err := t.checkpoints.RecordProfile(ctx, t.job.ID, profile.Profile, profile.Confidence); err != nil {
			return nil, fmt.Errorf("failed to checkpoint profile: %w", err)
		}

		artifact.Profile = profile.Profile
		artifact.Confidence = profile.Confidence
	}

	// Phase 1: entity extraction
	registry := resume.Registry.Clone()
	if resume.HasEntities {
		artifact.Entities = resume.Entities
		artifact.Background = resume.Background
	} else {
		if err := t.admission.Admit(ctx, ratelimit.CategoryGeneration); err != nil {
			return nil, fmt.Errorf("admission for entity extraction: %w", err)
		}

		entities, err := t.generator.GenerateEntities(ctx, t.job.VideoID, artifact.Profile)
		if err != nil {
			return nil, fmt.Errorf("entity extraction failed: %w", err)
		}

		if err := t.checkpoints.RecordEntities(ctx, t.job.ID, entities.Entities, entities.Background, entities.Registry); err != nil {
			return nil, fmt.Errorf("failed to checkpoint entities: %w", err)
		}

		artifact.Entities = entities.Entities
		artifact.Background = entities.Background
		registry = domain.MergeRegistries(registry, entities.Registry)
	}

	// Phase 2: scene batches. Batches recorded by an earlier run are
	// skipped; their scenes are already in resume.Scenes.
	scenes := append([]domain.Scene(nil), resume.Scenes...)
	recorded := make(map[int]bool, len(resume.BatchIndices))
	for _, idx := range resume.BatchIndices {
		recorded[idx] = true
	}

	completed := resume.CompletedBatches
	for batchIndex := 0; batchIndex < t.job.TotalBatches; batchIndex++ {
		if recorded[batchIndex] {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("task cancelled by context: %w", err)
		}

		if err := t.admission.Admit(ctx, ratelimit.CategoryGeneration); err != nil {
			return nil, fmt.Errorf("admission for batch %d: %w", batchIndex, err)
		}

		batch, err := t.generator.GenerateSceneBatch(ctx, generation.SceneBatchRequest{
			VideoID:    t.job.VideoID,
			Mode:       t.job.Mode,
			BatchIndex: batchIndex,
			BatchSize:  t.settings.BatchSize,
			Profile:    artifact.Profile,
			Entities:   artifact.Entities,
			Background: artifact.Background,
			Registry:   registry,
		})
		if err != nil {
			return nil, fmt.Errorf("scene batch %d failed: %w", batchIndex, err)
		}

		result := t.engine.Deduplicate(scenes, batch.Scenes, t.settings.DedupThreshold)
		if len(result.Duplicates) > 0 {
			t.logger.Info("dropped duplicate scenes",
				"batch_index", batchIndex,
				"dropped", len(result.Duplicates),
				"kept", len(result.Unique))
		}

		if err := t.checkpoints.RecordSceneBatch(ctx, t.job.ID, batchIndex, result.Unique, batch.Registry); err != nil {
			return nil, fmt.Errorf("failed to checkpoint batch %d: %w", batchIndex, err)
		}

		scenes = append(scenes, result.Unique...)
		// Earlier registrations win over later deltas for the same entity.
		registry = domain.MergeRegistries(batch.Registry, registry)

		completed++
		if err := t.job.RecordProgress(completed); err != nil {
			return nil, fmt.Errorf("failed to record progress: %w", err)
		}
		if err := t.jobs.Update(ctx, t.job); err != nil {
			t.logger.Error("failed to persist job progress", "error", err)
		}
	}

	artifact.Scenes = scenes
	artifact.Registry = registry
	return artifact, nil
}
