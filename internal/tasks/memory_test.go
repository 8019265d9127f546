package tasks

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awa-io/awa/pkg/schema"
)

func TestMemoryQueueAddAndGet(t *testing.T) {
	q := NewMemoryQueue()

	task, err := q.Add(context.Background(), NewTask("approve_order", "wf-1", "tok-1", "manager", map[string]any{"total": 99}))
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)
	assert.Equal(t, schema.TaskStatusPending, task.Status)
	assert.False(t, task.CreatedAt.IsZero())

	got, err := q.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "approve_order", got.ActivityID)
	assert.Equal(t, "wf-1", got.WorkflowID)
	assert.Equal(t, "tok-1", got.TokenID)
	assert.Equal(t, "manager", got.AssigneeID)
}

func TestMemoryQueueGetUnknown(t *testing.T) {
	q := NewMemoryQueue()

	_, err := q.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestMemoryQueueListByStatus(t *testing.T) {
	q := NewMemoryQueue()

	first, err := q.Add(context.Background(), NewTask("a", "wf", "t1", "", nil))
	require.NoError(t, err)
	second, err := q.Add(context.Background(), NewTask("b", "wf", "t2", "", nil))
	require.NoError(t, err)

	_, err = q.Complete(context.Background(), first.ID, nil)
	require.NoError(t, err)

	all, err := q.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Insertion order is preserved.
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)

	pending, err := q.List(context.Background(), schema.TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	completed, err := q.List(context.Background(), schema.TaskStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)
}

func TestMemoryQueueComplete(t *testing.T) {
	q := NewMemoryQueue()
	task, err := q.Add(context.Background(), NewTask("approve", "wf", "tok", "", nil))
	require.NoError(t, err)

	done, err := q.Complete(context.Background(), task.ID, map[string]any{"approved": true})
	require.NoError(t, err)
	assert.Equal(t, schema.TaskStatusCompleted, done.Status)
	assert.Equal(t, true, done.Result["approved"])
	require.NotNil(t, done.CompletedAt)

	// Completing twice is a conflict.
	_, err = q.Complete(context.Background(), task.ID, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))

	// Completing an unknown task is not found.
	_, err = q.Complete(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestMemoryQueueConcurrentAdd(t *testing.T) {
	q := NewMemoryQueue()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Add(context.Background(), NewTask("a", "wf", "tok", "", nil))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := q.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 16)
}
