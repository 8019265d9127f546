package diagram

import (
	"fmt"

	"github.com/awa-io/awa/pkg/schema"
)

// statusRank orders token statuses for overlay conflicts. When several
// tokens touched the same node the highest-ranked status wins, so a
// failure is never hidden behind a completion.
var statusRank = map[string]int{
	string(schema.TokenFailed):    5,
	string(schema.TokenActive):    4,
	string(schema.TokenWaiting):   3,
	string(schema.TokenCancelled): 2,
	string(schema.TokenCompleted): 1,
}

// Build constructs a DiagramModel from a workflow and an optional run
// result. Activities become boxes labeled with their actor kind, decision
// nodes become diamonds, events become circles. When result is non-nil
// each token overlays its status on its current activity and marks every
// node it exited as completed.
func Build(workflow schema.Workflow, result *schema.RunResult) (*DiagramModel, error) {
	overlays := buildOverlays(result)

	nodes := make([]*Node, 0, len(workflow.Activities)+len(workflow.DecisionNodes)+len(workflow.Events)+2)
	nodeIndex := make(map[string]*Node)

	// Virtual start node.
	startNode := &Node{ID: "__start__", Label: "Start", Kind: NodeKindStart}
	nodes = append(nodes, startNode)
	nodeIndex[startNode.ID] = startNode

	for _, act := range workflow.Activities {
		node := &Node{
			ID:     act.ID,
			Label:  fmt.Sprintf("%s (%s)", act.Name, act.ActorType),
			Kind:   NodeKindActivity,
			Actor:  act.ActorType,
			Status: overlays[act.ID],
		}
		nodes = append(nodes, node)
		nodeIndex[node.ID] = node
	}
	for _, dec := range workflow.DecisionNodes {
		node := &Node{
			ID:     dec.ID,
			Label:  dec.Name,
			Kind:   NodeKindDecision,
			Status: overlays[dec.ID],
		}
		nodes = append(nodes, node)
		nodeIndex[node.ID] = node
	}
	for _, ev := range workflow.Events {
		node := &Node{
			ID:     ev.ID,
			Label:  ev.Name,
			Kind:   NodeKindEvent,
			Status: overlays[ev.ID],
		}
		nodes = append(nodes, node)
		nodeIndex[node.ID] = node
	}

	// Virtual end node.
	endNode := &Node{ID: "__end__", Label: "End", Kind: NodeKindEnd}
	nodes = append(nodes, endNode)
	nodeIndex[endNode.ID] = endNode

	edges, err := buildEdges(workflow, nodeIndex)
	if err != nil {
		return nil, err
	}

	return &DiagramModel{
		Title: workflowTitle(workflow),
		Nodes: nodes,
		Edges: edges,
	}, nil
}

// buildOverlays indexes token state by node ID. Each token stamps its own
// status on its current activity; nodes the token already exited count as
// completed. statusRank resolves collisions.
func buildOverlays(result *schema.RunResult) map[string]*StatusOverlay {
	overlays := make(map[string]*StatusOverlay)
	if result == nil {
		return overlays
	}

	mark := func(nodeID, status, tokenID string) {
		if nodeID == "" || statusRank[status] == 0 {
			return
		}
		if existing, ok := overlays[nodeID]; ok && statusRank[existing.Status] >= statusRank[status] {
			return
		}
		overlays[nodeID] = &StatusOverlay{Status: status, TokenID: tokenID}
	}

	for _, token := range result.Tokens {
		for _, entry := range token.History {
			if entry.Action == schema.HistoryExited {
				mark(entry.NodeID, string(schema.TokenCompleted), token.ID)
			}
		}
		mark(token.ActivityID, string(token.Status), token.ID)
	}
	return overlays
}

// buildEdges maps workflow edges onto the model, then wires the virtual
// start node to every untargeted activity and every node without outgoing
// edges to the virtual end node.
func buildEdges(workflow schema.Workflow, nodeIndex map[string]*Node) ([]Edge, error) {
	hasInbound := make(map[string]bool, len(workflow.Edges))
	hasOutbound := make(map[string]bool, len(workflow.Edges))

	var edges []Edge
	for _, e := range workflow.Edges {
		if _, ok := nodeIndex[e.SourceID]; !ok {
			return nil, fmt.Errorf("diagram: edge %s references unknown source %s", e.ID, e.SourceID)
		}
		if _, ok := nodeIndex[e.TargetID]; !ok {
			return nil, fmt.Errorf("diagram: edge %s references unknown target %s", e.ID, e.TargetID)
		}
		edges = append(edges, Edge{
			From:      e.SourceID,
			To:        e.TargetID,
			Label:     edgeLabel(e),
			IsDefault: e.IsDefault,
		})
		hasInbound[e.TargetID] = true
		hasOutbound[e.SourceID] = true
	}

	for _, act := range workflow.Activities {
		if !hasInbound[act.ID] {
			edges = append(edges, Edge{From: "__start__", To: act.ID})
		}
	}
	leaves := make([]string, 0, len(workflow.Activities))
	for _, act := range workflow.Activities {
		leaves = append(leaves, act.ID)
	}
	for _, dec := range workflow.DecisionNodes {
		leaves = append(leaves, dec.ID)
	}
	for _, ev := range workflow.Events {
		leaves = append(leaves, ev.ID)
	}
	for _, id := range leaves {
		if !hasOutbound[id] {
			edges = append(edges, Edge{From: id, To: "__end__"})
		}
	}
	return edges, nil
}

// edgeLabel picks the display label for an edge: explicit label first,
// then the routing condition, then "default" for default decision edges.
func edgeLabel(e schema.Edge) string {
	if e.Label != "" {
		return e.Label
	}
	if e.Condition != "" {
		return e.Condition
	}
	if e.IsDefault {
		return "default"
	}
	return ""
}

// workflowTitle generates a diagram title from workflow metadata.
func workflowTitle(workflow schema.Workflow) string {
	if workflow.Name != "" {
		return workflow.Name
	}
	return "Workflow"
}
