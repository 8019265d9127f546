package actors

import (
	"context"

	"github.com/awa-io/awa/pkg/schema"
)

// RobotActor executes robot activities. There is no device integration;
// every execution completes simulated.
type RobotActor struct{}

// NewRobotActor creates a RobotActor.
func NewRobotActor() *RobotActor { return &RobotActor{} }

// Kind implements Actor.
func (a *RobotActor) Kind() schema.ActorKind { return schema.ActorRobot }

// Execute implements Actor.
func (a *RobotActor) Execute(_ context.Context, inv Invocation) (map[string]any, error) {
	result := baseResult(AgentRobot, inv.Activity.ID)
	result[KeySimulated] = true
	return result, nil
}
