package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskRequestEvent asks the processing side to start a background task.
// It carries only serialized data so the emitting side needs no knowledge
// of the task package.
type TaskRequestEvent struct {
	// ID uniquely identifies this event instance.
	ID uuid.UUID `json:"id"`

	// Type names the kind of task to create, e.g. storyboard generation.
	Type string `json:"type"`

	// Payload is the task-specific data, serialized as JSON.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the event was built.
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskRequestEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// JobPayload is the payload of every job-scoped task request: a reference
// to the persisted job the task should process.
type JobPayload struct {
	JobID string `json:"job_id"`
}

// NewJobEvent builds a task request for the given job.
func NewJobEvent(eventType string, jobID uuid.UUID) (*TaskRequestEvent, error) {
	return NewTaskRequestEvent(eventType, JobPayload{JobID: jobID.String()})
}

// NewTaskRequestEvent builds a task request with an arbitrary payload.
// Most callers want NewJobEvent; this exists for task types whose payload
// carries more than a job reference.
func NewTaskRequestEvent(eventType string, payload any) (*TaskRequestEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event payload: %w", err)
	}

	return &TaskRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler processes task request events, typically by building and
// queueing the corresponding task.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventEmitter publishes task request events to whoever is subscribed,
// letting services enqueue work without a direct runner dependency.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
