// Package actors implements the four actor kinds an activity can be
// assigned to: application software, AI agents, humans, and robots. Actors
// share one contract: execute an activity against a token's data and return
// a result map the engine merges back into the token.
package actors

import (
	"context"

	"github.com/awa-io/awa/pkg/schema"
)

// Result marker keys. The engine inspects these to decide what an
// execution meant; everything else in a result map is payload.
const (
	KeyActor               = "_actor"
	KeyActivity            = "_activity"
	KeyCompleted           = "_completed"
	KeySimulated           = "_simulated"
	KeyHumanTaskID         = "_human_task_id"
	KeyRequiresHumanAction = "_requires_human_action"
	KeyWaitingSince        = "_waiting_since"
)

// Values reported under KeyActor.
const (
	AgentSoftware = "software_agent"
	AgentAI       = "ai_agent"
	AgentHuman    = "human_agent"
	AgentRobot    = "robot_agent"
)

// Invocation is everything an actor gets about the activity it executes.
// Data is a snapshot of the token's private data; actors must not retain
// or mutate it after returning.
type Invocation struct {
	Activity   schema.Activity
	WorkflowID string
	TokenID    string
	RunID      string
	Data       map[string]any
}

// Actor executes activities of one kind. Implementations must be safe for
// concurrent use; one instance serves every engine in the process.
//
// A returned error means the step failed and the engine fails the token.
// Returning a result containing KeyRequiresHumanAction instead suspends
// the token until the matching human task completes.
type Actor interface {
	Kind() schema.ActorKind
	Execute(ctx context.Context, inv Invocation) (map[string]any, error)
}

// baseResult is the completion marker every synchronous actor starts from.
func baseResult(agent string, activityID string) map[string]any {
	return map[string]any{
		KeyCompleted: true,
		KeyActivity:  activityID,
		KeyActor:     agent,
	}
}
