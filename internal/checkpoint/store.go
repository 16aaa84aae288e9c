package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storyloom/storyboard-api/internal/domain"
	"github.com/storyloom/storyboard-api/internal/store"
)

// Key layout under the key-value collaborator. All keys for one job share
// the job ID so Clear can remove them without a scan.
const (
	keyProfileFmt    = "checkpoint:%s:profile"
	keyEntitiesFmt   = "checkpoint:%s:entities"
	keyBatchFmt      = "checkpoint:%s:batch:%d"
	keyBatchIndexFmt = "checkpoint:%s:batches"
)

// profileRecord is the persisted phase-0 output.
type profileRecord struct {
	Profile    json.RawMessage `json:"profile"`
	Confidence float64         `json:"confidence"`
	CreatedAt  time.Time       `json:"created_at"`
}

// entitiesRecord is the persisted phase-1 output.
type entitiesRecord struct {
	Entities   []domain.Entity       `json:"entities"`
	Background string                `json:"background"`
	Registry   domain.EntityRegistry `json:"registry"`
	CreatedAt  time.Time             `json:"created_at"`
}

// batchRecord is one persisted phase-2 batch.
type batchRecord struct {
	BatchIndex int                   `json:"batch_index"`
	Scenes     []domain.Scene        `json:"scenes"`
	Registry   domain.EntityRegistry `json:"registry"`
	CreatedAt  time.Time             `json:"created_at"`
}

// ResumeData is the consistent state reconstructed from a job's checkpoints.
type ResumeData struct {
	// Profile and Confidence hold the phase-0 output when HasProfile is set.
	Profile    json.RawMessage
	Confidence float64
	HasProfile bool

	// Entities and Background hold the phase-1 output when HasEntities is set.
	Entities    []domain.Entity
	Background  string
	HasEntities bool

	// Scenes holds every recorded batch's scenes concatenated in ascending
	// batch-index order, regardless of the order batches were written.
	Scenes []domain.Scene

	// BatchIndices lists the distinct recorded batch indices, ascending.
	BatchIndices []int

	// CompletedBatches is the count of distinct batch indices present.
	CompletedBatches int

	// Registry is the merged entity registry: the union of all phase-2
	// deltas with the phase-1 registry overlaid on top. Phase-1
	// descriptions win on key collisions, and among phase-2 deltas the
	// earliest batch wins.
	Registry domain.EntityRegistry
}

// Store records and reconstructs per-phase job output.
type Store struct {
	kv     store.KV
	logger *slog.Logger

	// locks serializes read-modify-write cycles per job. Cross-job
	// operations need no coordination.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// NewStore creates a checkpoint store over the given key-value collaborator.
// If logger is nil, the default logger is used.
func NewStore(kv store.KV, logger *slog.Logger) *Store {
	if kv == nil {
		panic("kv cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		kv:     kv,
		logger: logger.With(slog.String("component", "checkpoint_store")),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// jobLock returns the mutex guarding one job's records.
func (s *Store) jobLock(jobID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[jobID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[jobID] = mu
	}
	return mu
}

// releaseJobLock drops the lock entry for a cleared job to bound memory.
func (s *Store) releaseJobLock(jobID uuid.UUID) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.locks, jobID)
}

// RecordProfile persists the phase-0 profile payload and its confidence.
// Re-recording overwrites the previous profile.
func (s *Store) RecordProfile(
	ctx context.Context,
	jobID uuid.UUID,
	profile json.RawMessage,
	confidence float64,
) error {
	record := profileRecord{
		Profile:    profile,
		Confidence: confidence,
		CreatedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal profile record: %w", err)
	}

	mu := s.jobLock(jobID)
	mu.Lock()
	defer mu.Unlock()

	return s.kv.Set(ctx, fmt.Sprintf(keyProfileFmt, jobID), data)
}

// RecordEntities persists the phase-1 entities, background description and
// registry delta. Re-recording overwrites the previous record.
func (s *Store) RecordEntities(
	ctx context.Context,
	jobID uuid.UUID,
	entities []domain.Entity,
	background string,
	registry domain.EntityRegistry,
) error {
	record := entitiesRecord{
		Entities:   entities,
		Background: background,
		Registry:   registry,
		CreatedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal entities record: %w", err)
	}

	mu := s.jobLock(jobID)
	mu.Lock()
	defer mu.Unlock()

	return s.kv.Set(ctx, fmt.Sprintf(keyEntitiesFmt, jobID), data)
}

// RecordSceneBatch persists one phase-2 batch under its index and adds the
// index to the job's batch index record. Re-recording an existing index
// overwrites the batch payload without growing the index: reconstruction
// stays idempotent.
func (s *Store) RecordSceneBatch(
	ctx context.Context,
	jobID uuid.UUID,
	batchIndex int,
	scenes []domain.Scene,
	registry domain.EntityRegistry,
) error {
	if batchIndex < 0 {
		return fmt.Errorf("%w: batch index %d", domain.ErrInvalidFormat, batchIndex)
	}

	record := batchRecord{
		BatchIndex: batchIndex,
		Scenes:     scenes,
		Registry:   registry,
		CreatedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal batch record: %w", err)
	}

	mu := s.jobLock(jobID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.kv.Set(ctx, fmt.Sprintf(keyBatchFmt, jobID, batchIndex), data); err != nil {
		return err
	}

	indices, err := s.readBatchIndices(ctx, jobID)
	if err != nil {
		return err
	}

	for _, existing := range indices {
		if existing == batchIndex {
			return nil
		}
	}

	indices = append(indices, batchIndex)
	sort.Ints(indices)

	indexData, err := json.Marshal(indices)
	if err != nil {
		return fmt.Errorf("failed to marshal batch index: %w", err)
	}
	return s.kv.Set(ctx, fmt.Sprintf(keyBatchIndexFmt, jobID), indexData)
}

// Reconstruct gathers everything recorded for the job into a consistent
// resume state. It returns (nil, nil) when nothing has been recorded.
// Having only phase-0/phase-1 data and no batches is a valid state with an
// empty scene list, not an error. Corrupted records are skipped, never
// surfaced.
func (s *Store) Reconstruct(ctx context.Context, jobID uuid.UUID) (*ResumeData, error) {
	mu := s.jobLock(jobID)
	mu.Lock()
	defer mu.Unlock()

	resume := &ResumeData{
		Scenes:   make([]domain.Scene, 0),
		Registry: domain.NewEntityRegistry(),
	}
	found := false

	// Phase 0
	if data, err := s.kv.Get(ctx, fmt.Sprintf(keyProfileFmt, jobID)); err == nil {
		var record profileRecord
		if jsonErr := json.Unmarshal(data, &record); jsonErr == nil && len(record.Profile) > 0 {
			resume.Profile = record.Profile
			resume.Confidence = record.Confidence
			resume.HasProfile = true
			found = true
		} else {
			s.logger.Warn("skipping corrupted profile checkpoint", "job_id", jobID)
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to read profile checkpoint: %w", err)
	}

	// Phase 1
	var phase1Registry domain.EntityRegistry
	if data, err := s.kv.Get(ctx, fmt.Sprintf(keyEntitiesFmt, jobID)); err == nil {
		var record entitiesRecord
		if jsonErr := json.Unmarshal(data, &record); jsonErr == nil {
			resume.Entities = record.Entities
			resume.Background = record.Background
			resume.HasEntities = true
			phase1Registry = record.Registry
			found = true
		} else {
			s.logger.Warn("skipping corrupted entities checkpoint", "job_id", jobID)
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to read entities checkpoint: %w", err)
	}

	// Phase 2: read every recorded batch, ascending by index.
	indices, err := s.readBatchIndices(ctx, jobID)
	if err != nil {
		return nil, err
	}

	validIndices := make([]int, 0, len(indices))
	for _, index := range indices {
		data, err := s.kv.Get(ctx, fmt.Sprintf(keyBatchFmt, jobID, index))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("batch index without record, skipping",
					"job_id", jobID, "batch_index", index)
				continue
			}
			return nil, fmt.Errorf("failed to read batch checkpoint %d: %w", index, err)
		}

		var record batchRecord
		if jsonErr := json.Unmarshal(data, &record); jsonErr != nil {
			s.logger.Warn("skipping corrupted batch checkpoint",
				"job_id", jobID, "batch_index", index)
			continue
		}

		resume.Scenes = append(resume.Scenes, record.Scenes...)
		// Among phase-2 deltas the earliest batch wins on key collisions,
		// matching the merge order of an uninterrupted run.
		resume.Registry = domain.MergeRegistries(record.Registry, resume.Registry)
		validIndices = append(validIndices, index)
		found = true
	}

	// Phase-1 registry entries win over phase-2 deltas on key collisions.
	resume.Registry.Merge(phase1Registry)

	resume.BatchIndices = validIndices
	resume.CompletedBatches = len(validIndices)

	if !found {
		return nil, nil
	}
	return resume, nil
}

// Clear removes every checkpoint recorded for the job.
func (s *Store) Clear(ctx context.Context, jobID uuid.UUID) error {
	mu := s.jobLock(jobID)
	mu.Lock()

	indices, err := s.readBatchIndices(ctx, jobID)
	if err != nil {
		mu.Unlock()
		return err
	}

	for _, index := range indices {
		if err := s.kv.Delete(ctx, fmt.Sprintf(keyBatchFmt, jobID, index)); err != nil {
			mu.Unlock()
			return fmt.Errorf("failed to delete batch checkpoint %d: %w", index, err)
		}
	}

	keys := []string{
		fmt.Sprintf(keyBatchIndexFmt, jobID),
		fmt.Sprintf(keyEntitiesFmt, jobID),
		fmt.Sprintf(keyProfileFmt, jobID),
	}
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			mu.Unlock()
			return fmt.Errorf("failed to delete checkpoint key: %w", err)
		}
	}

	mu.Unlock()
	s.releaseJobLock(jobID)
	return nil
}

// readBatchIndices loads the job's batch index record. A missing or
// corrupted index record reads as empty.
func (s *Store) readBatchIndices(ctx context.Context, jobID uuid.UUID) ([]int, error) {
	data, err := s.kv.Get(ctx, fmt.Sprintf(keyBatchIndexFmt, jobID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read batch index: %w", err)
	}

	var indices []int
	if jsonErr := json.Unmarshal(data, &indices); jsonErr != nil {
		s.logger.Warn("corrupted batch index record, treating as empty", "job_id", jobID)
		return nil, nil
	}
	sort.Ints(indices)
	return indices, nil
}
