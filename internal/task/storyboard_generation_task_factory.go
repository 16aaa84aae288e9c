package task

import (
	"log/slog"

	"github.com/storyloom/storyboard-api/internal/checkpoint"
	"github.com/storyloom/storyboard-api/internal/dedup"
	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/generation"
	"github.com/storyloom/storyboard-api/internal/resultcache"
	"github.com/storyloom/storyboard-api/internal/store"
)

// StoryboardGenerationTaskFactory creates StoryboardGenerationTask instances
type StoryboardGenerationTaskFactory struct {
	jobs        store.JobStore
	generator   generation.Generator
	checkpoints *checkpoint.Store
	results     *resultcache.Cache
	engine      *dedup.Engine
	admission   AdmissionController
	settings    GenerationSettings
	logger      *slog.Logger
}

// NewStoryboardGenerationTaskFactory creates a new factory for
// StoryboardGenerationTasks
func NewStoryboardGenerationTaskFactory(
	jobs store.JobStore,
	generator generation.Generator,
	checkpoints *checkpoint.Store,
	results *resultcache.Cache,
	engine *dedup.Engine,
	admission AdmissionController,
	settings GenerationSettings,
	logger *slog.Logger,
) *StoryboardGenerationTaskFactory {
	return &StoryboardGenerationTaskFactory{
		jobs:        jobs,
		generator:   generator,
		checkpoints: checkpoints,
		results:     results,
		engine:      engine,
		admission:   admission,
		settings:    settings,
		logger:      logger.With("component", "storyboard_generation_task_factory"),
	}
}

// CreateTask creates a new StoryboardGenerationTask for the specified job
func (f *StoryboardGenerationTaskFactory) CreateTask(job *domain.Job) (Task, error) {
	task, err := NewStoryboardGenerationTask(
		job,
		f.jobs,
		f.generator,
		f.checkpoints,
		f.results,
		f.engine,
		f.admission,
		f.settings,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}
