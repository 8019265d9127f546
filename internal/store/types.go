package store

import (
	"time"

	"github.com/awa-io/awa/pkg/schema"
)

// RunRecord is one archived run: the latest full snapshot plus the columns
// the archive is filtered on.
type RunRecord struct {
	RunID        string              `json:"run_id"`
	WorkflowID   string              `json:"workflow_id"`
	WorkflowName string              `json:"workflow_name,omitempty"`
	Status       schema.EngineStatus `json:"status"`
	Result       *schema.RunResult   `json:"result"`
	Error        string              `json:"error,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NewRunRecord derives the archive row from a run snapshot.
func NewRunRecord(workflowName string, result *schema.RunResult) *RunRecord {
	return &RunRecord{
		RunID:        result.RunID,
		WorkflowID:   result.WorkflowID,
		WorkflowName: workflowName,
		Status:       result.Status,
		Result:       result,
		Error:        result.Error,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
	}
}

// RunFilter narrows ListRuns. Zero values mean "no constraint".
type RunFilter struct {
	WorkflowID string
	Status     string
	Limit      int
	Offset     int
}
