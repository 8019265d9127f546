package schema

import "time"

// Task statuses.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
)

// HumanTask is created by the human actor when an activity needs
// out-of-band completion. Tasks live in a process-wide queue that outlives
// any single engine run; completing one feeds the engine's resume protocol.
type HumanTask struct {
	ID          string         `json:"id"`
	ActivityID  string         `json:"activity_id"`
	WorkflowID  string         `json:"workflow_id"`
	TokenID     string         `json:"token_id,omitempty"`
	Status      string         `json:"status"`
	AssigneeID  string         `json:"assignee_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
