package diagram

import "github.com/awa-io/awa/pkg/schema"

// NodeKind classifies a diagram node by the workflow element it renders.
type NodeKind string

const (
	NodeKindActivity NodeKind = "activity"
	NodeKindDecision NodeKind = "decision"
	NodeKindEvent    NodeKind = "event"
	NodeKindStart    NodeKind = "start"
	NodeKindEnd      NodeKind = "end"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node represents a single workflow element in the diagram.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Actor  schema.ActorKind // set for activities only
	Status *StatusOverlay
}

// StatusOverlay carries token state for a node when the diagram is built
// from a finished or in-flight run.
type StatusOverlay struct {
	Status  string // from schema.TokenStatus
	TokenID string
}

// Edge represents a routing edge between two nodes.
type Edge struct {
	From      string
	To        string
	Label     string
	IsDefault bool
}
