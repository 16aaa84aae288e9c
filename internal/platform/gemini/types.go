package gemini

import (
	"encoding/json"

	"github.com/storyloom/storyboard-api/internal/domain"
)

// profilePromptData is the data passed to the profile prompt template.
type profilePromptData struct {
	VideoID string
}

// entitiesPromptData is the data passed to the entities prompt template.
type entitiesPromptData struct {
	VideoID string
	Profile string
}

// scenesPromptData is the data passed to the scenes prompt template.
type scenesPromptData struct {
	VideoID    string
	Mode       string
	BatchIndex int
	BatchSize  int
	Profile    string
	Background string
	Entities   []domain.Entity
	Registry   domain.EntityRegistry
}

// profileSchema is the expected JSON structure of a phase-0 response.
type profileSchema struct {
	// Profile is the opaque style analysis, kept as raw JSON because its
	// shape is model-defined.
	Profile json.RawMessage `json:"profile"`

	// Confidence is the model's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

// entitiesSchema is the expected JSON structure of a phase-1 response.
type entitiesSchema struct {
	Entities   []entitySchema    `json:"entities"`
	Background string            `json:"background"`
	Registry   map[string]string `json:"registry,omitempty"`
}

// entitySchema is a single extracted entity in a phase-1 response.
type entitySchema struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// scenesSchema is the expected JSON structure of a phase-2 response.
type scenesSchema struct {
	Scenes   []sceneSchema     `json:"scenes"`
	Registry map[string]string `json:"registry,omitempty"`
}

// sceneSchema is a single scene in a phase-2 response.
type sceneSchema struct {
	Description string          `json:"description"`
	Characters  string          `json:"characters,omitempty"`
	Props       string          `json:"props,omitempty"`
	Setting     string          `json:"setting,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
}
