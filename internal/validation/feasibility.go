package validation

import (
	"fmt"

	"github.com/awa-io/awa/pkg/schema"
)

// validateFeasibility performs graph analysis: the start activity must be
// determinable, and every node should be reachable from it (BFS over
// edges). Unreachable nodes are warnings; a run simply never visits them.
// Cycles are allowed since decision tables may legitimately loop a token
// back through earlier activities.
func validateFeasibility(workflow schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if len(workflow.Activities) == 0 {
		result.AddError("activities", schema.ErrCodeValidation,
			"workflow has no activities; no start activity can be determined")
		return result
	}

	targets := make(map[string]bool, len(workflow.Edges))
	for _, e := range workflow.Edges {
		targets[e.TargetID] = true
	}

	start := ""
	for _, a := range workflow.Activities {
		if !targets[a.ID] {
			start = a.ID
			break
		}
	}
	if start == "" {
		// Every activity is targeted; the first declared one is used.
		start = workflow.Activities[0].ID
		result.AddWarning("activities", schema.ErrCodeValidation,
			fmt.Sprintf("every activity has an incoming edge; falling back to first declared activity %q as start", start))
	}

	outgoing := make(map[string][]string, len(workflow.Edges))
	for _, e := range workflow.Edges {
		outgoing[e.SourceID] = append(outgoing[e.SourceID], e.TargetID)
	}

	reachable := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range outgoing[node] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	for i, a := range workflow.Activities {
		if !reachable[a.ID] {
			result.AddWarning(fmt.Sprintf("activities[%d]", i), schema.ErrCodeValidation,
				fmt.Sprintf("activity %q is unreachable from the start activity", a.ID))
		}
	}
	for i, d := range workflow.DecisionNodes {
		if !reachable[d.ID] {
			result.AddWarning(fmt.Sprintf("decision_nodes[%d]", i), schema.ErrCodeValidation,
				fmt.Sprintf("decision node %q is unreachable from the start activity", d.ID))
		}
	}

	return result
}
