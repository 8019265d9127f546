package schema

import "time"

// TokenStatus is the execution state of a token.
type TokenStatus string

const (
	TokenActive    TokenStatus = "active"
	TokenWaiting   TokenStatus = "waiting"
	TokenCompleted TokenStatus = "completed"
	TokenFailed    TokenStatus = "failed"
	TokenCancelled TokenStatus = "cancelled"
)

// Terminal reports whether the status is final. The engine treats terminal
// tokens as inactive; nothing transitions out of them.
func (s TokenStatus) Terminal() bool {
	return s == TokenCompleted || s == TokenFailed || s == TokenCancelled
}

// EngineStatus is the lifecycle state of a workflow engine, derived from
// its tokens: running while any token is active, waiting_human when none
// is active but at least one waits, completed when no token is active or
// waiting. Failed is reserved for faults in the engine itself, and
// cancelled for runs aborted by their context.
type EngineStatus string

const (
	EngineIdle         EngineStatus = "idle"
	EngineRunning      EngineStatus = "running"
	EngineWaitingHuman EngineStatus = "waiting_human"
	EngineCompleted    EngineStatus = "completed"
	EngineFailed       EngineStatus = "failed"
	EngineCancelled    EngineStatus = "cancelled"
)

// Token history actions. Status changes append "status_change:<status>".
const (
	HistoryCreated      = "created"
	HistoryExited       = "exited"
	HistoryEntered      = "entered"
	historyStatusPrefix = "status_change:"
)

// HistoryStatusChange renders the history action for a status transition.
func HistoryStatusChange(status TokenStatus) string {
	return historyStatusPrefix + string(status)
}

// HistoryEntry is one append-only token audit record.
type HistoryEntry struct {
	NodeID    string     `json:"node_id"`
	Timestamp time.Time  `json:"timestamp"`
	Action    string     `json:"action"`
	Analytics *Analytics `json:"analytics"`
}

// TokenSnapshot is the serialized form of a token: its position, status,
// private data, and full history.
type TokenSnapshot struct {
	ID            string         `json:"id"`
	ActivityID    string         `json:"activity_id"`
	Status        TokenStatus    `json:"status"`
	ContextData   map[string]any `json:"context_data"`
	History       []HistoryEntry `json:"history"`
	ParentTokenID string         `json:"parent_token_id,omitempty"`
	WorkflowID    string         `json:"workflow_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RunResult is the snapshot an engine returns once no token is active:
// every token's full state and every context's current data. A completed
// run may still contain failed tokens; callers inspect token statuses to
// detect partial failure.
type RunResult struct {
	RunID      string                    `json:"run_id"`
	WorkflowID string                    `json:"workflow_id"`
	Status     EngineStatus              `json:"status"`
	Tokens     []TokenSnapshot           `json:"tokens"`
	Contexts   map[string]map[string]any `json:"contexts"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt *time.Time                `json:"finished_at,omitempty"`
	Error      string                    `json:"error,omitempty"`
}
