package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/store"
)

func newTestStore() (*Store, *store.MemoryKV) {
	kv := store.NewMemoryKV()
	return NewStore(kv, nil), kv
}

func batchScenes(prefix string, n int) []domain.Scene {
	scenes := make([]domain.Scene, n)
	for i := 0; i < n; i++ {
		scenes[i] = domain.Scene{Description: fmt.Sprintf("%s scene %d", prefix, i)}
	}
	return scenes
}

func TestReconstructNothingRecorded(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore()

	resume, err := s.Reconstruct(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, resume)
}

func TestReconstructOrdersBatchesByIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore()
	jobID := uuid.New()

	// Record batches out of arrival order: 2, 0, 1.
	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 2, batchScenes("third", 2), nil))
	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 0, batchScenes("first", 2), nil))
	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 1, batchScenes("second", 2), nil))

	resume, err := s.Reconstruct(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, resume)

	assert.Equal(t, 3, resume.CompletedBatches)
	assert.Equal(t, []int{0, 1, 2}, resume.BatchIndices)
	require.Len(t, resume.Scenes, 6)
	assert.Equal(t, "first scene 0", resume.Scenes[0].Description)
	assert.Equal(t, "first scene 1", resume.Scenes[1].Description)
	assert.Equal(t, "second scene 0", resume.Scenes[2].Description)
	assert.Equal(t, "third scene 1", resume.Scenes[5].Description)
}

func TestRecordSceneBatchIdempotentPerIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore()
	jobID := uuid.New()

	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 0, batchScenes("v1", 2), nil))
	// Re-recording the same index replaces the payload, not adds a batch.
	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 0, batchScenes("v2", 3), nil))

	resume, err := s.Reconstruct(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, resume)

	assert.Equal(t, 1, resume.CompletedBatches)
	require.Len(t, resume.Scenes, 3)
	assert.Equal(t, "v2 scene 0", resume.Scenes[0].Description)
}

func TestReconstructRegistryMergeOrderInvariant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	phase1 := domain.EntityRegistry{"A": "x"}
	phase2 := domain.EntityRegistry{"A": "y", "B": "z"}

	// Phase 1 recorded before the batch.
	s1, _ := newTestStore()
	job1 := uuid.New()
	require.NoError(t, s1.RecordEntities(ctx, job1, nil, "", phase1))
	require.NoError(t, s1.RecordSceneBatch(ctx, job1, 0, nil, phase2))

	// Phase 1 recorded after the batch.
	s2, _ := newTestStore()
	job2 := uuid.New()
	require.NoError(t, s2.RecordSceneBatch(ctx, job2, 0, nil, phase2))
	require.NoError(t, s2.RecordEntities(ctx, job2, nil, "", phase1))

	for _, tc := range []struct {
		name  string
		s     *Store
		jobID uuid.UUID
	}{
		{"phase1 first", s1, job1},
		{"phase2 first", s2, job2},
	} {
		resume, err := tc.s.Reconstruct(ctx, tc.jobID)
		require.NoError(t, err, tc.name)
		require.NotNil(t, resume, tc.name)
		assert.Equal(t, domain.EntityRegistry{"A": "x", "B": "z"}, resume.Registry, tc.name)
	}
}

func TestReconstructEarliestBatchWinsRegistryCollisions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore()
	jobID := uuid.New()

	// The earliest batch wins among phase-2 deltas; write them out of order
	// to confirm write order is irrelevant.
	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 1, nil, domain.EntityRegistry{"C": "from batch 1"}))
	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 0, nil, domain.EntityRegistry{"C": "from batch 0"}))

	resume, err := s.Reconstruct(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, resume)
	assert.Equal(t, "from batch 0", resume.Registry["C"])
}

func TestReconstructProfileAndEntitiesOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore()
	jobID := uuid.New()

	profile := json.RawMessage(`{"style":"noir","palette":"muted"}`)
	require.NoError(t, s.RecordProfile(ctx, jobID, profile, 0.82))
	entities := []domain.Entity{{Name: "ANNA", Kind: "character", Description: "a tired barista"}}
	require.NoError(t, s.RecordEntities(ctx, jobID, entities, "a cramped corner cafe", domain.EntityRegistry{"ANNA": "a tired barista"}))

	resume, err := s.Reconstruct(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, resume)

	// No phase-2 batches is a valid resume state, not an error.
	assert.True(t, resume.HasProfile)
	assert.JSONEq(t, string(profile), string(resume.Profile))
	assert.InDelta(t, 0.82, resume.Confidence, 1e-9)
	assert.True(t, resume.HasEntities)
	assert.Equal(t, "a cramped corner cafe", resume.Background)
	assert.Empty(t, resume.Scenes)
	assert.Equal(t, 0, resume.CompletedBatches)
}

func TestReconstructSkipsCorruptedBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, kv := newTestStore()
	jobID := uuid.New()

	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 0, batchScenes("ok", 1), nil))
	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 1, batchScenes("bad", 1), nil))

	// Corrupt batch 1 behind the store's back.
	require.NoError(t, kv.Set(ctx, fmt.Sprintf("checkpoint:%s:batch:1", jobID), []byte("{not json")))

	resume, err := s.Reconstruct(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, resume)

	assert.Equal(t, 1, resume.CompletedBatches)
	require.Len(t, resume.Scenes, 1)
	assert.Equal(t, "ok scene 0", resume.Scenes[0].Description)
}

func TestClearRemovesAllJobKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, kv := newTestStore()
	jobID := uuid.New()
	otherJob := uuid.New()

	require.NoError(t, s.RecordProfile(ctx, jobID, json.RawMessage(`{}`), 0.5))
	require.NoError(t, s.RecordEntities(ctx, jobID, nil, "bg", nil))
	require.NoError(t, s.RecordSceneBatch(ctx, jobID, 0, batchScenes("a", 1), nil))
	require.NoError(t, s.RecordSceneBatch(ctx, otherJob, 0, batchScenes("b", 1), nil))

	require.NoError(t, s.Clear(ctx, jobID))

	resume, err := s.Reconstruct(ctx, jobID)
	require.NoError(t, err)
	assert.Nil(t, resume)

	// The other job is untouched.
	other, err := s.Reconstruct(ctx, otherJob)
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, 1, other.CompletedBatches)
	assert.Equal(t, 2, kv.Len())
}

func TestConcurrentBatchWritesAllRecorded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore()
	jobID := uuid.New()

	const batches = 20
	var wg sync.WaitGroup
	for i := 0; i < batches; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			_ = s.RecordSceneBatch(ctx, jobID, index, batchScenes(fmt.Sprintf("b%d", index), 1), nil)
		}(i)
	}
	wg.Wait()

	resume, err := s.Reconstruct(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, resume)
	assert.Equal(t, batches, resume.CompletedBatches)
	assert.Len(t, resume.Scenes, batches)
}
