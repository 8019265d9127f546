package engine

import "github.com/awa-io/awa/pkg/schema"

// nodeKind classifies what a token's current node id points at.
type nodeKind int

const (
	nodeUnknown nodeKind = iota
	nodeActivity
	nodeDecision
	nodeEvent
)

// graph indexes a workflow for the run loop. Built once at engine
// construction; read-only afterwards.
type graph struct {
	workflow   schema.Workflow
	activities map[string]schema.Activity
	decisions  map[string]schema.DecisionNode
	events     map[string]schema.Event
	edgesByID  map[string]schema.Edge

	// outgoing preserves edge declaration order per source node; the loop
	// always follows the first outgoing edge.
	outgoing map[string][]schema.Edge

	start schema.Activity
}

func newGraph(workflow schema.Workflow) *graph {
	g := &graph{
		workflow:   workflow,
		activities: make(map[string]schema.Activity, len(workflow.Activities)),
		decisions:  make(map[string]schema.DecisionNode, len(workflow.DecisionNodes)),
		events:     make(map[string]schema.Event, len(workflow.Events)),
		edgesByID:  make(map[string]schema.Edge, len(workflow.Edges)),
		outgoing:   make(map[string][]schema.Edge),
	}
	for _, a := range workflow.Activities {
		g.activities[a.ID] = a
	}
	for _, d := range workflow.DecisionNodes {
		g.decisions[d.ID] = d
	}
	for _, ev := range workflow.Events {
		g.events[ev.ID] = ev
	}
	for _, e := range workflow.Edges {
		g.edgesByID[e.ID] = e
		g.outgoing[e.SourceID] = append(g.outgoing[e.SourceID], e)
	}
	g.start = findStartActivity(workflow)
	return g
}

// findStartActivity picks the first declared activity that is not the
// target of any edge. When every activity is targeted the first declared
// one wins; this is a deterministic fallback, not a topological check.
func findStartActivity(workflow schema.Workflow) schema.Activity {
	targets := make(map[string]struct{}, len(workflow.Edges))
	for _, e := range workflow.Edges {
		targets[e.TargetID] = struct{}{}
	}
	for _, a := range workflow.Activities {
		if _, targeted := targets[a.ID]; !targeted {
			return a
		}
	}
	if len(workflow.Activities) > 0 {
		return workflow.Activities[0]
	}
	return schema.Activity{}
}

func (g *graph) kindOf(nodeID string) nodeKind {
	if _, ok := g.activities[nodeID]; ok {
		return nodeActivity
	}
	if _, ok := g.decisions[nodeID]; ok {
		return nodeDecision
	}
	if _, ok := g.events[nodeID]; ok {
		return nodeEvent
	}
	return nodeUnknown
}

func (g *graph) activity(nodeID string) (schema.Activity, bool) {
	a, ok := g.activities[nodeID]
	return a, ok
}

func (g *graph) decision(nodeID string) (schema.DecisionNode, bool) {
	d, ok := g.decisions[nodeID]
	return d, ok
}

func (g *graph) edge(edgeID string) (schema.Edge, bool) {
	e, ok := g.edgesByID[edgeID]
	return e, ok
}

// firstOutgoing returns the first declared outgoing edge of a node.
func (g *graph) firstOutgoing(nodeID string) (schema.Edge, bool) {
	edges := g.outgoing[nodeID]
	if len(edges) == 0 {
		return schema.Edge{}, false
	}
	return edges[0], true
}
