package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEventType = "storyboard_generation"

func TestNewJobEvent(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	event, err := NewJobEvent(testEventType, jobID)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, testEventType, event.Type)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var payload JobPayload
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, jobID.String(), payload.JobID)
}

func TestNewTaskRequestEventCustomPayload(t *testing.T) {
	t.Parallel()

	type reprocessPayload struct {
		JobID     string `json:"job_id"`
		FromBatch int    `json:"from_batch"`
		Force     bool   `json:"force"`
	}

	in := reprocessPayload{JobID: uuid.New().String(), FromBatch: 2, Force: true}
	event, err := NewTaskRequestEvent("storyboard_reprocess", in)
	require.NoError(t, err)

	var out reprocessPayload
	require.NoError(t, event.UnmarshalPayload(&out))
	assert.Equal(t, in, out)
}

func TestNewTaskRequestEventRejectsUnserializablePayload(t *testing.T) {
	t.Parallel()

	_, err := NewTaskRequestEvent(testEventType, func() {})
	assert.Error(t, err)
}

func TestUnmarshalPayloadMismatch(t *testing.T) {
	t.Parallel()

	event, err := NewTaskRequestEvent(testEventType, []int{1, 2, 3})
	require.NoError(t, err)

	var payload JobPayload
	assert.Error(t, event.UnmarshalPayload(&payload))
}

// recordingHandler captures delivered events for assertions.
type recordingHandler struct {
	lastEvent *TaskRequestEvent
	handleErr error
	handled   int
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *TaskRequestEvent) error {
	h.lastEvent = event
	h.handled++
	return h.handleErr
}
