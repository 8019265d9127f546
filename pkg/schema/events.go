package schema

// Run lifecycle event names, published to the streaming hub.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"

	EventTokenCreated   = "token_created"
	EventTokenMoved     = "token_moved"
	EventTokenWaiting   = "token_waiting"
	EventTokenResumed   = "token_resumed"
	EventTokenCompleted = "token_completed"
	EventTokenFailed    = "token_failed"
	EventTokenCancelled = "token_cancelled"

	EventActivityCompleted = "activity_completed"
	EventDecisionEvaluated = "decision_evaluated"

	EventTaskCreated   = "task_created"
	EventTaskCompleted = "task_completed"
)
