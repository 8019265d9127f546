package expressions

import "context"

// Engine evaluates expressions against a scope map.
// Three implementations: CEL (activity controls), Expr (software-actor
// programs), GoJQ (context binding transforms).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, scope map[string]any) (any, error)
}

// Scope variable names shared by the CEL and Expr engines.
const (
	ScopeData     = "data"
	ScopeActivity = "activity"
	ScopeWorkflow = "workflow"
)
