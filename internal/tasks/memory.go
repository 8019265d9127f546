package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/awa-io/awa/pkg/schema"
)

// MemoryQueue is the in-process Queue used by default and in tests. Tasks
// are held in insertion order and never evicted.
type MemoryQueue struct {
	mu    sync.RWMutex
	tasks map[string]schema.HumanTask
	order []string
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{tasks: make(map[string]schema.HumanTask)}
}

// Add implements Queue.
func (q *MemoryQueue) Add(_ context.Context, task schema.HumanTask) (schema.HumanTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = schema.TaskStatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if _, exists := q.tasks[task.ID]; exists {
		return schema.HumanTask{}, schema.NewErrorf(schema.ErrCodeConflict, "task %s already exists", task.ID)
	}

	q.tasks[task.ID] = task
	q.order = append(q.order, task.ID)
	return task, nil
}

// Get implements Queue.
func (q *MemoryQueue) Get(_ context.Context, taskID string) (schema.HumanTask, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return schema.HumanTask{}, schema.NewErrorf(schema.ErrCodeNotFound, "task %s not found", taskID)
	}
	return task, nil
}

// List implements Queue.
func (q *MemoryQueue) List(_ context.Context, status string) ([]schema.HumanTask, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]schema.HumanTask, 0, len(q.order))
	for _, id := range q.order {
		task := q.tasks[id]
		if status == "" || task.Status == status {
			out = append(out, task)
		}
	}
	return out, nil
}

// Complete implements Queue.
func (q *MemoryQueue) Complete(_ context.Context, taskID string, result map[string]any) (schema.HumanTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return schema.HumanTask{}, schema.NewErrorf(schema.ErrCodeNotFound, "task %s not found", taskID)
	}
	if task.Status != schema.TaskStatusPending {
		return schema.HumanTask{}, schema.NewErrorf(schema.ErrCodeConflict, "task %s is %s, not pending", taskID, task.Status)
	}

	now := time.Now().UTC()
	task.Status = schema.TaskStatusCompleted
	task.Result = result
	task.CompletedAt = &now
	q.tasks[taskID] = task
	return task, nil
}
