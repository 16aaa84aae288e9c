package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storyloom/storyboard-api/internal/domain"
)

// MemoryKV is an in-memory implementation of the KV interface, suitable for
// tests and single-process deployments. Values are copied on the way in and
// out so callers cannot alias the stored slices.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory key-value store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data: make(map[string][]byte),
	}
}

// Ensure MemoryKV implements the KV interface
var _ KV = (*MemoryKV)(nil)

// Get implements KV.Get.
func (s *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements KV.Set.
func (s *MemoryKV) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = stored
	return nil
}

// Delete implements KV.Delete.
func (s *MemoryKV) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len returns the number of stored keys. Intended for tests.
func (s *MemoryKV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// MemoryJobStore is an in-memory implementation of the JobStore interface.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[uuid.UUID]*domain.Job),
	}
}

// Ensure MemoryJobStore implements the JobStore interface
var _ JobStore = (*MemoryJobStore)(nil)

// Create implements JobStore.Create.
func (s *MemoryJobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return ErrDuplicate
	}

	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

// GetByID implements JobStore.GetByID.
func (s *MemoryJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	out := *job
	return &out, nil
}

// Update implements JobStore.Update.
func (s *MemoryJobStore) Update(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}

	stored := *job
	stored.UpdatedAt = time.Now().UTC()
	s.jobs[job.ID] = &stored
	return nil
}

// UpdateStatus implements JobStore.UpdateStatus.
func (s *MemoryJobStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	errorMsg string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	if err := job.UpdateStatus(status); err != nil {
		return err
	}
	job.LastError = errorMsg
	return nil
}

// GetPending implements JobStore.GetPending.
func (s *MemoryJobStore) GetPending(ctx context.Context) ([]*domain.Job, error) {
	return s.getByStatus(domain.JobStatusPending, 0), nil
}

// GetInProgress implements JobStore.GetInProgress.
func (s *MemoryJobStore) GetInProgress(
	ctx context.Context,
	olderThan time.Duration,
) ([]*domain.Job, error) {
	return s.getByStatus(domain.JobStatusInProgress, olderThan), nil
}

// Delete implements JobStore.Delete.
func (s *MemoryJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryJobStore) getByStatus(status domain.JobStatus, olderThan time.Duration) []*domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	out := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.Status != status {
			continue
		}
		if olderThan > 0 && job.UpdatedAt.After(cutoff) {
			continue
		}
		copied := *job
		out = append(out, &copied)
	}
	return out
}
