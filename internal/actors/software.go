package actors

import (
	"context"
	"log/slog"

	"github.com/awa-io/awa/internal/expressions"
	"github.com/awa-io/awa/pkg/schema"
)

// ProgramLanguageExpr marks programs the software actor evaluates
// in-process. Programs in other languages are integration metadata and are
// skipped here.
const ProgramLanguageExpr = "expr"

// SoftwareActor executes application activities. Activities without
// programs complete immediately with a bare completion marker; that is the
// seam where deployments integrate real business logic. Activities carrying
// expr programs evaluate them in declaration order against the token data.
type SoftwareActor struct {
	engine *expressions.ExprEngine
	log    *slog.Logger
}

// NewSoftwareActor creates a SoftwareActor.
func NewSoftwareActor(log *slog.Logger) *SoftwareActor {
	if log == nil {
		log = slog.Default()
	}
	return &SoftwareActor{engine: expressions.NewExprEngine(), log: log}
}

// Kind implements Actor.
func (a *SoftwareActor) Kind() schema.ActorKind { return schema.ActorApplication }

// Execute implements Actor. Program outputs merge into the result: object
// outputs key by key, anything else under the program's id. A failing
// program fails the whole step.
func (a *SoftwareActor) Execute(ctx context.Context, inv Invocation) (map[string]any, error) {
	result := baseResult(AgentSoftware, inv.Activity.ID)

	scope := map[string]any{
		expressions.ScopeData:     inv.Data,
		expressions.ScopeActivity: map[string]any{"id": inv.Activity.ID, "name": inv.Activity.Name},
		expressions.ScopeWorkflow: map[string]any{"id": inv.WorkflowID},
	}

	for _, program := range inv.Activity.Programs {
		if program.Language != ProgramLanguageExpr || program.Code == "" {
			continue
		}

		out, err := a.engine.Evaluate(ctx, program.Code, scope)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStepFailed, "program %s failed", program.ID).
				WithNode(inv.Activity.ID).WithCause(err)
		}

		switch v := out.(type) {
		case map[string]any:
			for k, val := range v {
				result[k] = val
			}
		default:
			result[program.ID] = v
		}

		a.log.DebugContext(ctx, "program evaluated",
			"activity_id", inv.Activity.ID,
			"program_id", program.ID)
	}

	return result, nil
}
