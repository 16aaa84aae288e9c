package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/events"
	"github.com/storyloom/storyboard-api/internal/store"
	"github.com/storyloom/storyboard-api/internal/task"
)

// mockEmitter records emitted events and optionally fails.
type mockEmitter struct {
	mu     sync.Mutex
	events []*events.TaskRequestEvent
	err    error
}

func (m *mockEmitter) EmitEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockEmitter) emitted() []*events.TaskRequestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*events.TaskRequestEvent(nil), m.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, jobs store.JobStore, emitter events.EventEmitter) JobService {
	t.Helper()

	svc, err := NewJobService(jobs, emitter, testLogger())
	require.NoError(t, err)
	return svc
}

func TestNewJobServiceValidatesDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewJobService(nil, &mockEmitter{}, testLogger())
	assert.Error(t, err)

	_, err = NewJobService(store.NewMemoryJobStore(), nil, testLogger())
	assert.Error(t, err)
}

func TestCreateJobAndEnqueue(t *testing.T) {
	t.Parallel()

	t.Run("persists job and emits event", func(t *testing.T) {
		t.Parallel()

		jobs := store.NewMemoryJobStore()
		emitter := &mockEmitter{}
		svc := newTestService(t, jobs, emitter)

		job, err := svc.CreateJobAndEnqueue(context.Background(), "video-1", domain.WorkflowModeStandard, 4)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, domain.JobStatusPending, job.Status)

		stored, err := jobs.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, "video-1", stored.VideoID)
		assert.Equal(t, 4, stored.TotalBatches)

		emitted := emitter.emitted()
		require.Len(t, emitted, 1)
		assert.Equal(t, task.TaskTypeStoryboardGeneration, emitted[0].Type)

		var payload events.JobPayload
		require.NoError(t, emitted[0].UnmarshalPayload(&payload))
		assert.Equal(t, job.ID.String(), payload.JobID)
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, store.NewMemoryJobStore(), &mockEmitter{})

		_, err := svc.CreateJobAndEnqueue(context.Background(), "", domain.WorkflowModeStandard, 4)
		require.Error(t, err)

		_, err = svc.CreateJobAndEnqueue(context.Background(), "video-1", domain.WorkflowModeStandard, 0)
		require.Error(t, err)
	})

	t.Run("emit failure still returns the job", func(t *testing.T) {
		t.Parallel()

		jobs := store.NewMemoryJobStore()
		emitter := &mockEmitter{err: errors.New("bus down")}
		svc := newTestService(t, jobs, emitter)

		job, err := svc.CreateJobAndEnqueue(context.Background(), "video-1", domain.WorkflowModeDetailed, 2)
		require.NoError(t, err)

		// The job stays pending so runner recovery can pick it up.
		stored, err := jobs.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusPending, stored.Status)
	})
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	jobs := store.NewMemoryJobStore()
	svc := newTestService(t, jobs, &mockEmitter{})

	job, err := svc.CreateJobAndEnqueue(context.Background(), "video-1", domain.WorkflowModeStandard, 1)
	require.NoError(t, err)

	got, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = svc.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDeleteJob(t *testing.T) {
	t.Parallel()

	t.Run("deletes pending job", func(t *testing.T) {
		t.Parallel()

		jobs := store.NewMemoryJobStore()
		svc := newTestService(t, jobs, &mockEmitter{})

		job, err := svc.CreateJobAndEnqueue(context.Background(), "video-1", domain.WorkflowModeStandard, 1)
		require.NoError(t, err)

		require.NoError(t, svc.DeleteJob(context.Background(), job.ID))

		_, err = jobs.GetByID(context.Background(), job.ID)
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	t.Run("refuses in-progress job", func(t *testing.T) {
		t.Parallel()

		jobs := store.NewMemoryJobStore()
		svc := newTestService(t, jobs, &mockEmitter{})

		job, err := svc.CreateJobAndEnqueue(context.Background(), "video-1", domain.WorkflowModeStandard, 1)
		require.NoError(t, err)
		require.NoError(t, jobs.UpdateStatus(context.Background(), job.ID, domain.JobStatusInProgress, ""))

		err = svc.DeleteJob(context.Background(), job.ID)
		assert.ErrorIs(t, err, ErrJobNotDeletable)
	})

	t.Run("missing job", func(t *testing.T) {
		t.Parallel()

		svc := newTestService(t, store.NewMemoryJobStore(), &mockEmitter{})
		err := svc.DeleteJob(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}
