package actors

import (
	"context"
	"log/slog"

	"github.com/awa-io/awa/internal/tasks"
	"github.com/awa-io/awa/pkg/schema"
)

// HumanActor executes human activities by enqueuing a HumanTask and
// returning immediately. It never blocks; the engine reads the
// KeyRequiresHumanAction marker and suspends the token until the task
// completes out of band.
type HumanActor struct {
	queue tasks.Queue
	log   *slog.Logger
}

// NewHumanActor creates a HumanActor backed by queue.
func NewHumanActor(queue tasks.Queue, log *slog.Logger) *HumanActor {
	if log == nil {
		log = slog.Default()
	}
	return &HumanActor{queue: queue, log: log}
}

// Kind implements Actor.
func (a *HumanActor) Kind() schema.ActorKind { return schema.ActorHuman }

// Execute implements Actor. The task is assigned to the activity's role
// and carries a snapshot of the token data so assignees see what they are
// acting on.
func (a *HumanActor) Execute(ctx context.Context, inv Invocation) (map[string]any, error) {
	snapshot := make(map[string]any, len(inv.Data))
	for k, v := range inv.Data {
		snapshot[k] = v
	}

	task, err := a.queue.Add(ctx, tasks.NewTask(inv.Activity.ID, inv.WorkflowID, inv.TokenID, inv.Activity.RoleID, snapshot))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStepFailed, "enqueue human task").
			WithNode(inv.Activity.ID).WithCause(err)
	}

	a.log.InfoContext(ctx, "human task created",
		"task_id", task.ID,
		"activity_id", inv.Activity.ID,
		"assignee_id", task.AssigneeID)

	return map[string]any{
		KeyHumanTaskID:         task.ID,
		KeyRequiresHumanAction: true,
		KeyActivity:            inv.Activity.ID,
		KeyActor:               AgentHuman,
	}, nil
}
