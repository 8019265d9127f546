package validation

import (
	"fmt"

	"github.com/awa-io/awa/pkg/schema"
)

// validateSemantic performs reference analysis on the workflow. Checks:
// unique node and edge ids, edge endpoints resolve to declared nodes,
// context bindings point at declared contexts, decision rules and defaults
// point at declared edges, grant roles are non-empty.
func validateSemantic(workflow schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	nodeIDs := make(map[string]string) // id -> kind, for duplicate detection
	contextIDs := make(map[string]bool, len(workflow.Contexts))
	edgeIDs := make(map[string]bool, len(workflow.Edges))

	registerNode := func(id, kind, path string) {
		if id == "" {
			return
		}
		if prev, exists := nodeIDs[id]; exists {
			result.AddError(path, schema.ErrCodeValidation,
				fmt.Sprintf("duplicate node id %q (already declared as %s)", id, prev))
			return
		}
		nodeIDs[id] = kind
	}

	for i, a := range workflow.Activities {
		registerNode(a.ID, "activity", fmt.Sprintf("activities[%d].id", i))
	}
	for i, d := range workflow.DecisionNodes {
		registerNode(d.ID, "decision node", fmt.Sprintf("decision_nodes[%d].id", i))
	}
	for i, ev := range workflow.Events {
		registerNode(ev.ID, "event", fmt.Sprintf("events[%d].id", i))
	}

	for i, c := range workflow.Contexts {
		path := fmt.Sprintf("contexts[%d]", i)
		if contextIDs[c.ID] {
			result.AddError(path+".id", schema.ErrCodeValidation,
				fmt.Sprintf("duplicate context id %q", c.ID))
		}
		contextIDs[c.ID] = true

		for j, grant := range c.Grants {
			if grant.RoleID == "" {
				result.AddError(fmt.Sprintf("%s.grants[%d].role_id", path, j),
					schema.ErrCodeValidation, "grant role_id is empty")
			}
		}
	}

	for i, e := range workflow.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		if edgeIDs[e.ID] {
			result.AddError(path+".id", schema.ErrCodeValidation,
				fmt.Sprintf("duplicate edge id %q", e.ID))
		}
		edgeIDs[e.ID] = true

		if _, ok := nodeIDs[e.SourceID]; !ok {
			result.AddError(path+".source_id", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", e.SourceID))
		}
		if _, ok := nodeIDs[e.TargetID]; !ok {
			result.AddError(path+".target_id", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", e.TargetID))
		}
	}

	for i, a := range workflow.Activities {
		path := fmt.Sprintf("activities[%d]", i)
		for j, binding := range a.ContextBindings {
			if !contextIDs[binding.ContextID] {
				result.AddError(fmt.Sprintf("%s.context_bindings[%d].context_id", path, j),
					schema.ErrCodeValidation,
					fmt.Sprintf("references non-existent context %q", binding.ContextID))
			}
		}
		for j, control := range a.Controls {
			if control.Enforcement == schema.EnforcementMandatory && control.Expression == "" {
				result.AddWarning(fmt.Sprintf("%s.controls[%d].expression", path, j),
					schema.ErrCodeValidation,
					fmt.Sprintf("mandatory control %q has no expression and will never gate execution", control.ID))
			}
		}
	}

	for i, d := range workflow.DecisionNodes {
		path := fmt.Sprintf("decision_nodes[%d]", i)

		inputCount := len(d.DecisionTable.Inputs)
		for j, rule := range d.DecisionTable.Rules {
			rulePath := fmt.Sprintf("%s.decision_table.rules[%d]", path, j)
			if !edgeIDs[rule.OutputEdgeID] {
				result.AddError(rulePath+".output_edge_id", schema.ErrCodeValidation,
					fmt.Sprintf("references non-existent edge %q", rule.OutputEdgeID))
			}
			if len(rule.InputEntries) > inputCount {
				result.AddWarning(rulePath+".input_entries", schema.ErrCodeValidation,
					fmt.Sprintf("rule has %d entries but the table declares %d inputs; extra entries are ignored",
						len(rule.InputEntries), inputCount))
			}
		}

		if d.DefaultOutputEdgeID != "" && !edgeIDs[d.DefaultOutputEdgeID] {
			result.AddError(path+".default_output_edge_id", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent edge %q", d.DefaultOutputEdgeID))
		}

		if len(d.DecisionTable.Rules) == 0 && d.DefaultOutputEdgeID == "" {
			result.AddWarning(path+".decision_table.rules", schema.ErrCodeValidation,
				"decision table has no rules and no default edge; any token reaching it will fail")
		}
	}

	return result
}
