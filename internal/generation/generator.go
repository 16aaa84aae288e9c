package generation

import (
	"context"
	"encoding/json"

	"github.com/storyloom/storyboard-api/internal/domain"
)

// ProfileResult is the phase-0 output: an opaque style/profile analysis of
// the source material and the model's confidence in it.
type ProfileResult struct {
	Profile    json.RawMessage
	Confidence float64
}

// EntitiesResult is the phase-1 output: the extracted entities, a background
// description, and the registry delta derived from them.
type EntitiesResult struct {
	Entities   []domain.Entity
	Background string
	Registry   domain.EntityRegistry
}

// SceneBatchRequest carries everything the service needs to generate one
// phase-2 batch, including accumulated context from earlier phases.
type SceneBatchRequest struct {
	VideoID    string
	Mode       domain.WorkflowMode
	BatchIndex int
	BatchSize  int
	Profile    json.RawMessage
	Entities   []domain.Entity
	Background string
	Registry   domain.EntityRegistry
}

// SceneBatchResult is one phase-2 batch: generated scenes plus the registry
// delta for entities first seen in this batch.
type SceneBatchResult struct {
	Scenes   []domain.Scene
	Registry domain.EntityRegistry
}

// Generator defines the interface for the multi-phase content generation
// service. This interface serves as a boundary between the application core
// and external AI/LLM services, following the hexagonal architecture
// pattern. Implementations are expected to perform their own transient-error
// retries; errors that escape are classified via the sentinels in errors.go.
type Generator interface {
	// GenerateProfile runs the phase-0 profile analysis for a source video.
	GenerateProfile(ctx context.Context, videoID string) (*ProfileResult, error)

	// GenerateEntities runs the phase-1 entity extraction.
	GenerateEntities(ctx context.Context, videoID string, profile json.RawMessage) (*EntitiesResult, error)

	// GenerateSceneBatch runs one phase-2 scene batch generation.
	GenerateSceneBatch(ctx context.Context, req SceneBatchRequest) (*SceneBatchResult, error)
}
