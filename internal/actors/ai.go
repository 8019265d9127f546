package actors

import (
	"context"
	"log/slog"

	"github.com/awa-io/awa/pkg/schema"
)

// Generator is the backend for AI activities. Implementations call a
// generative model and return the structured output to merge into the
// token. The prompt is the activity's description, falling back to its
// name.
type Generator interface {
	Generate(ctx context.Context, prompt string, data map[string]any) (map[string]any, error)
}

// AIActor executes ai_agent activities. Without a Generator every
// execution completes simulated, so workflows with AI activities stay
// runnable in environments with no model credentials.
type AIActor struct {
	gen Generator
	log *slog.Logger
}

// NewAIActor creates an AIActor. A nil gen means simulated execution.
func NewAIActor(gen Generator, log *slog.Logger) *AIActor {
	if log == nil {
		log = slog.Default()
	}
	return &AIActor{gen: gen, log: log}
}

// Kind implements Actor.
func (a *AIActor) Kind() schema.ActorKind { return schema.ActorAIAgent }

// Execute implements Actor.
func (a *AIActor) Execute(ctx context.Context, inv Invocation) (map[string]any, error) {
	result := baseResult(AgentAI, inv.Activity.ID)

	if a.gen == nil {
		result[KeySimulated] = true
		a.log.DebugContext(ctx, "ai activity simulated, no generator configured",
			"activity_id", inv.Activity.ID)
		return result, nil
	}

	prompt := inv.Activity.Description
	if prompt == "" {
		prompt = inv.Activity.Name
	}

	out, err := a.gen.Generate(ctx, prompt, inv.Data)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStepFailed, "generation failed").
			WithNode(inv.Activity.ID).WithCause(err)
	}
	for k, v := range out {
		result[k] = v
	}
	return result, nil
}
