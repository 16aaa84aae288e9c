package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// Common validation errors for Scene
var (
	ErrEmptySceneDescription = errors.New("scene description cannot be empty")
)

// Scene represents one generated storyboard unit. Characters and Props are
// comma-delimited lists as emitted by the generation service; Extra carries
// any additional model output we do not interpret but must round-trip.
// A scene is immutable once it has been accepted by the deduplication pass.
type Scene struct {
	Description string          `json:"description"`
	Characters  string          `json:"characters,omitempty"`
	Props       string          `json:"props,omitempty"`
	Setting     string          `json:"setting,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
}

// Validate checks if the Scene has valid data.
func (s *Scene) Validate() error {
	if strings.TrimSpace(s.Description) == "" {
		return ErrEmptySceneDescription
	}
	return nil
}

// Entity represents one extracted character or prop with its description.
type Entity struct {
	Name        string `json:"name"`
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`
}
