// Package decision evaluates decision tables against token data to pick
// the outgoing edge a token follows.
package decision

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/awa-io/awa/pkg/schema"
)

// Evaluator resolves decision nodes. It is pure: evaluation reads the node
// and the supplied data, mutates neither, and returns the same edge for the
// same inputs.
//
// Every hit policy is executed as first-match. Tables declaring another
// policy still evaluate, with the downgrade noted in the logs.
type Evaluator struct {
	log *slog.Logger
}

// NewEvaluator creates an Evaluator logging through log.
func NewEvaluator(log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{log: log}
}

// Evaluate walks the node's rules in declaration order and returns the
// output edge of the first rule whose input entries all match data. Rules
// match positionally: entry i is compared against data[inputs[i].name],
// entries beyond the declared inputs are ignored, and a rule with fewer
// entries than inputs leaves the remaining positions unconstrained.
//
// When no rule matches, the node's default edge is returned if declared.
// The second return is false only when there is no result at all, which
// callers must treat as a dead end rather than an edge.
func (e *Evaluator) Evaluate(node schema.DecisionNode, data map[string]any) (string, bool) {
	table := node.DecisionTable

	if table.HitPolicy != "" && table.HitPolicy != schema.HitPolicyFirst {
		e.log.Debug("decision table hit policy downgraded to first-match",
			"decision_id", node.ID,
			"hit_policy", string(table.HitPolicy))
	}

	for i, rule := range table.Rules {
		if e.ruleMatches(table.Inputs, rule, data) {
			e.log.Debug("decision rule matched",
				"decision_id", node.ID,
				"rule_index", i,
				"output_edge_id", rule.OutputEdgeID)
			return rule.OutputEdgeID, true
		}
	}

	if node.DefaultOutputEdgeID != "" {
		e.log.Debug("decision fell through to default edge",
			"decision_id", node.ID,
			"output_edge_id", node.DefaultOutputEdgeID)
		return node.DefaultOutputEdgeID, true
	}
	return "", false
}

func (e *Evaluator) ruleMatches(inputs []schema.TableColumn, rule schema.DecisionRule, data map[string]any) bool {
	n := len(rule.InputEntries)
	if len(inputs) < n {
		n = len(inputs)
	}
	for i := 0; i < n; i++ {
		if !entryMatches(data[inputs[i].Name], rule.InputEntries[i]) {
			return false
		}
	}
	return true
}

// entryMatches compares a data value with a rule entry after string
// conversion, so 42, 42.0 and "42" all satisfy the entry "42".
func entryMatches(value any, entry string) bool {
	sv := stringForm(value)
	if sv == entry {
		return true
	}
	fv, errV := strconv.ParseFloat(sv, 64)
	fe, errE := strconv.ParseFloat(entry, 64)
	return errV == nil && errE == nil && fv == fe
}

func stringForm(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
