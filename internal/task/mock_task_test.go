package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/storyloom/storyboard-api/internal/domain"
)

// mockTask is a controllable Task implementation for runner and queue tests.
type mockTask struct {
	id        uuid.UUID
	taskType  string
	payload   []byte
	status    TaskStatus
	executeFn func(ctx context.Context) error
	execCount atomic.Int32
}

func newMockTask(id uuid.UUID, executeFn func(ctx context.Context) error) *mockTask {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &mockTask{
		id:        id,
		taskType:  TaskTypeStoryboardGeneration,
		status:    TaskStatusPending,
		executeFn: executeFn,
	}
}

func (t *mockTask) ID() uuid.UUID      { return t.id }
func (t *mockTask) Type() string       { return t.taskType }
func (t *mockTask) Payload() []byte    { return t.payload }
func (t *mockTask) Status() TaskStatus { return t.status }

func (t *mockTask) Execute(ctx context.Context) error {
	t.execCount.Add(1)
	if t.executeFn != nil {
		return t.executeFn(ctx)
	}
	return nil
}

func (t *mockTask) executions() int {
	return int(t.execCount.Load())
}

// mockFactory builds mockTasks keyed by job ID and records what it built.
type mockFactory struct {
	mu        sync.Mutex
	executeFn func(ctx context.Context) error
	built     []uuid.UUID
}

func (f *mockFactory) CreateTask(job *domain.Job) (Task, error) {
	f.mu.Lock()
	f.built = append(f.built, job.ID)
	f.mu.Unlock()
	return newMockTask(job.ID, f.executeFn), nil
}

func (f *mockFactory) builtIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.built...)
}
