// Package tasks manages the human task queue. The queue is injected into
// each engine so concurrent runs of the same deployment share one backlog,
// and tasks survive the run that created them.
package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/awa-io/awa/pkg/schema"
)

// Queue is the human task backlog. Implementations must be safe for
// concurrent use; the durable queue lives in internal/store.
type Queue interface {
	// Add enqueues a pending task and returns it with its assigned id.
	Add(ctx context.Context, task schema.HumanTask) (schema.HumanTask, error)

	// Get returns the task by id.
	Get(ctx context.Context, taskID string) (schema.HumanTask, error)

	// List returns tasks in creation order. An empty status returns all.
	List(ctx context.Context, status string) ([]schema.HumanTask, error)

	// Complete marks a pending task completed and records the result.
	// Completing an unknown or already-completed task is an error.
	Complete(ctx context.Context, taskID string, result map[string]any) (schema.HumanTask, error)
}

// NewTask builds a pending HumanTask for the given activity and token.
func NewTask(activityID, workflowID, tokenID, assigneeID string, data map[string]any) schema.HumanTask {
	return schema.HumanTask{
		ID:         uuid.NewString(),
		ActivityID: activityID,
		WorkflowID: workflowID,
		TokenID:    tokenID,
		Status:     schema.TaskStatusPending,
		AssigneeID: assigneeID,
		Data:       data,
		CreatedAt:  time.Now().UTC(),
	}
}
