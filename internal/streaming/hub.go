// Package streaming provides pub/sub for live run events. The engine
// publishes; WebSocket sessions and anything else watching a run
// subscribe.
package streaming

import (
	"context"
	"time"
)

// RunEvent is a real-time event emitted while a workflow run executes.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	TokenID    string    `json:"token_id,omitempty"`
	NodeID     string    `json:"node_id,omitempty"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
// Zero-valued fields match everything.
type EventFilter struct {
	RunID      string   `json:"run_id,omitempty"`
	WorkflowID string   `json:"workflow_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for run events.
type EventHub interface {
	Publish(ctx context.Context, event RunEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan RunEvent, func(), error)
}
