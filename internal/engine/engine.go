// Package engine executes workflow definitions. One Engine owns one run:
// it creates tokens, steps them through the graph until none is active,
// and exposes the suspend/resume protocol human activities rely on.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/awa-io/awa/internal/actors"
	"github.com/awa-io/awa/internal/contexts"
	"github.com/awa-io/awa/internal/decision"
	"github.com/awa-io/awa/internal/expressions"
	"github.com/awa-io/awa/internal/logging"
	"github.com/awa-io/awa/internal/streaming"
	"github.com/awa-io/awa/internal/tasks"
	"github.com/awa-io/awa/internal/validation"
	"github.com/awa-io/awa/pkg/schema"
)

// Engine drives one run of one workflow. Token stepping is sequential;
// the mutex exists for the boundary surfaces (status reads, resume,
// cancel) that touch the engine while a run is in flight. Step failures
// are contained to their token; only a fault in the engine itself fails
// the run.
type Engine struct {
	mu sync.Mutex

	workflow  schema.Workflow
	graph     *graph
	contexts  *contexts.Manager
	registry  *actors.Registry
	evaluator *decision.Evaluator
	queue     tasks.Queue
	hub       streaming.EventHub
	cel       *expressions.CELEngine
	log       *slog.Logger

	runID      string
	status     schema.EngineStatus
	tokens     []*Token
	tokensByID map[string]*Token
	startedAt  time.Time
	finishedAt *time.Time
	lastErr    string
}

type config struct {
	queue     tasks.Queue
	registry  *actors.Registry
	hub       streaming.EventHub
	log       *slog.Logger
	validator *validation.WorkflowValidator
	runID     string
}

// Option configures an Engine.
type Option func(*config)

// WithQueue sets the human task queue. Deployments share one queue across
// engines so tasks outlive the runs that created them.
func WithQueue(q tasks.Queue) Option {
	return func(c *config) { c.queue = q }
}

// WithRegistry sets the actor registry.
func WithRegistry(r *actors.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithHub sets the event hub run events are published to.
func WithHub(h streaming.EventHub) Option {
	return func(c *config) { c.hub = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithValidator reuses an already-compiled workflow validator.
func WithValidator(v *validation.WorkflowValidator) Option {
	return func(c *config) { c.validator = v }
}

// WithRunID pins the run id instead of generating one.
func WithRunID(id string) Option {
	return func(c *config) { c.runID = id }
}

// New validates the workflow and builds an idle engine for it. Validation
// failure is a configuration error; no run is attempted.
func New(workflow schema.Workflow, opts ...Option) (*Engine, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}
	if cfg.queue == nil {
		cfg.queue = tasks.NewMemoryQueue()
	}
	if cfg.registry == nil {
		reg, err := actors.DefaultRegistry(cfg.queue, cfg.log)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeConfiguration, "build default actor registry").WithCause(err)
		}
		cfg.registry = reg
	}
	if cfg.hub == nil {
		cfg.hub = streaming.NewMemoryHub()
	}
	if cfg.validator == nil {
		v, err := validation.New()
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeConfiguration, "compile workflow schema").WithCause(err)
		}
		cfg.validator = v
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}

	if result := cfg.validator.Validate(workflow); !result.Valid() {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
			"workflow %s failed validation", workflow.ID).
			WithDetails(map[string]any{"errors": result.Errors, "warnings": result.Warnings}).
			WithCause(result.ToError())
	}

	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "build control expression engine").WithCause(err)
	}

	return &Engine{
		workflow:   workflow,
		graph:      newGraph(workflow),
		contexts:   contexts.NewManager(workflow.Contexts),
		registry:   cfg.registry,
		evaluator:  decision.NewEvaluator(cfg.log),
		queue:      cfg.queue,
		hub:        cfg.hub,
		cel:        cel,
		log:        cfg.log,
		runID:      cfg.runID,
		status:     schema.EngineIdle,
		tokensByID: make(map[string]*Token),
	}, nil
}

// RunID returns the run identifier.
func (e *Engine) RunID() string { return e.runID }

// Workflow returns the definition this engine executes.
func (e *Engine) Workflow() schema.Workflow { return e.workflow }

// Status returns the engine status.
func (e *Engine) Status() schema.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Tokens returns snapshots of every token, in creation order.
func (e *Engine) Tokens() []schema.TokenSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]schema.TokenSnapshot, 0, len(e.tokens))
	for _, t := range e.tokens {
		out = append(out, t.Snapshot())
	}
	return out
}

// Token returns a snapshot of one token.
func (e *Engine) Token(tokenID string) (schema.TokenSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tokensByID[tokenID]
	if !ok {
		return schema.TokenSnapshot{}, false
	}
	return t.Snapshot(), true
}

// Contexts returns a copy of every context's current data.
func (e *Engine) Contexts() map[string]map[string]any {
	return e.contexts.Snapshot()
}

// Result builds the run snapshot: every token's full state and every
// context's data.
func (e *Engine) Result() *schema.RunResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resultLocked()
}

func (e *Engine) resultLocked() *schema.RunResult {
	tokens := make([]schema.TokenSnapshot, 0, len(e.tokens))
	for _, t := range e.tokens {
		tokens = append(tokens, t.Snapshot())
	}
	return &schema.RunResult{
		RunID:      e.runID,
		WorkflowID: e.workflow.ID,
		Status:     e.status,
		Tokens:     tokens,
		Contexts:   e.contexts.Snapshot(),
		StartedAt:  e.startedAt,
		FinishedAt: e.finishedAt,
		Error:      e.lastErr,
	}
}

// Run executes the workflow from its start activity: one token is created
// with initialData and stepped until no token is active. The returned
// result may carry failed tokens; a run is complete once nothing is
// active, and callers inspect token statuses for partial failure. Run can
// be called once per engine; after a human suspension, ResumeToken and
// Continue carry the run forward.
func (e *Engine) Run(ctx context.Context, initialData map[string]any) (*schema.RunResult, error) {
	e.mu.Lock()
	if e.status != schema.EngineIdle {
		status := e.status
		e.mu.Unlock()
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "engine already started, status %s", status)
	}
	e.status = schema.EngineRunning
	e.startedAt = time.Now().UTC()

	token := NewToken(e.workflow.ID, e.graph.start.ID, initialData)
	e.tokens = append(e.tokens, token)
	e.tokensByID[token.ID()] = token
	e.mu.Unlock()

	ctx = e.correlate(ctx)
	e.log.InfoContext(ctx, "run started",
		"workflow_name", e.workflow.Name,
		"start_activity", e.graph.start.ID)
	e.publish(ctx, schema.EventRunStarted, "", "", map[string]any{"workflow_name": e.workflow.Name})
	e.publish(ctx, schema.EventTokenCreated, token.ID(), token.NodeID(), nil)

	return e.loop(ctx)
}

// Continue re-enters the step loop after an out-of-band resume. It is a
// no-op returning the current snapshot when nothing is active.
func (e *Engine) Continue(ctx context.Context) (*schema.RunResult, error) {
	e.mu.Lock()
	if e.status == schema.EngineIdle {
		e.mu.Unlock()
		return nil, schema.NewError(schema.ErrCodeConflict, "engine has not been started")
	}
	e.mu.Unlock()

	return e.loop(e.correlate(ctx))
}

func (e *Engine) correlate(ctx context.Context) context.Context {
	return logging.WithRunID(logging.WithWorkflowID(ctx, e.workflow.ID), e.runID)
}

// loop is the superstep driver: while any token is active, visit the
// current snapshot of active tokens once. Tokens resumed or created
// mid-round are picked up on the next round. A panic escaping a step is
// an engine fault: the run fails as a whole.
func (e *Engine) loop(ctx context.Context) (result *schema.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			fault := schema.NewErrorf(schema.ErrCodeExecution, "engine fault: %v", r)
			e.mu.Lock()
			e.status = schema.EngineFailed
			e.lastErr = fault.Error()
			now := time.Now().UTC()
			e.finishedAt = &now
			e.mu.Unlock()

			e.log.ErrorContext(ctx, "engine fault", "panic", fmt.Sprint(r))
			e.publish(ctx, schema.EventRunCompleted, "", "", map[string]any{"status": string(schema.EngineFailed)})
			result = nil
			err = fault
		}
	}()

	for {
		if ctx.Err() != nil {
			return e.cancelRun(ctx, ctx.Err())
		}

		e.mu.Lock()
		round := make([]*Token, 0, len(e.tokens))
		for _, t := range e.tokens {
			if t.Status() == schema.TokenActive {
				round = append(round, t)
			}
		}
		if len(round) == 0 {
			e.finishLocked()
			e.mu.Unlock()
			break
		}
		e.status = schema.EngineRunning
		e.mu.Unlock()

		for _, token := range round {
			if ctx.Err() != nil {
				return e.cancelRun(ctx, ctx.Err())
			}
			e.step(ctx, token)
		}
	}

	res := e.Result()
	e.log.InfoContext(ctx, "run settled", "status", string(res.Status), "tokens", len(res.Tokens))
	e.publish(ctx, schema.EventRunCompleted, "", "", map[string]any{"status": string(res.Status)})
	return res, nil
}

// finishLocked re-derives the engine status from the token population. A
// run that already failed or was cancelled keeps that status; a completed
// run gets its finish stamp.
func (e *Engine) finishLocked() {
	if e.status == schema.EngineFailed || e.status == schema.EngineCancelled {
		return
	}
	e.status = deriveEngineStatus(e.tokens)
	if e.status == schema.EngineCompleted {
		now := time.Now().UTC()
		e.finishedAt = &now
	}
}

// cancelRun aborts the run: every non-terminal token is cancelled and the
// engine lands in the cancelled status. The partial result is returned
// alongside the error so callers can persist it.
func (e *Engine) cancelRun(ctx context.Context, cause error) (*schema.RunResult, error) {
	e.mu.Lock()
	for _, t := range e.tokens {
		if isValidTokenTransition(t.Status(), schema.TokenCancelled) {
			t.UpdateStatus(schema.TokenCancelled, nil)
		}
	}
	e.status = schema.EngineCancelled
	now := time.Now().UTC()
	e.finishedAt = &now
	res := e.resultLocked()
	e.mu.Unlock()

	e.log.WarnContext(ctx, "run cancelled", "cause", cause)
	e.publish(ctx, schema.EventRunCompleted, "", "", map[string]any{"status": string(schema.EngineCancelled)})
	return res, schema.NewError(schema.ErrCodeCancelled, "run cancelled").WithCause(cause)
}

// step dispatches one token by the kind of its current node.
func (e *Engine) step(ctx context.Context, token *Token) {
	e.mu.Lock()
	if token.Status() != schema.TokenActive {
		e.mu.Unlock()
		return
	}
	nodeID := token.NodeID()
	e.mu.Unlock()

	ctx = logging.WithTokenID(ctx, token.ID())

	switch e.graph.kindOf(nodeID) {
	case nodeActivity:
		activity, _ := e.graph.activity(nodeID)
		e.executeActivity(ctx, token, activity)
	case nodeDecision:
		node, _ := e.graph.decision(nodeID)
		e.evaluateDecision(ctx, token, node)
	default:
		// Events are graph metadata, not executable nodes; tokens must
		// never be routed onto them.
		e.mu.Lock()
		token.UpdateStatus(schema.TokenFailed, nil)
		e.mu.Unlock()
		e.log.WarnContext(ctx, "token failed on non-executable node", "node_id", nodeID)
		e.publish(ctx, schema.EventTokenFailed, token.ID(), nodeID, map[string]any{"reason": "node is not executable"})
	}
}

// executeActivity runs one activity for one token: controls gate first,
// read bindings assemble the invocation data, the actor executes, and the
// result decides whether the token advances, suspends, or completes.
func (e *Engine) executeActivity(ctx context.Context, token *Token, activity schema.Activity) {
	started := time.Now().UTC()

	if err := e.checkControls(ctx, token, activity); err != nil {
		e.failToken(ctx, token, started, err)
		return
	}

	invData, err := e.assembleData(ctx, token, activity)
	if err != nil {
		e.failToken(ctx, token, started, err)
		return
	}

	result, err := e.invoke(ctx, token, activity, invData)
	if err != nil {
		e.failToken(ctx, token, started, err)
		return
	}

	analytics := e.successAnalytics(activity, time.Since(started))

	e.mu.Lock()
	token.MergeData(result)

	if requires, _ := result[actors.KeyRequiresHumanAction].(bool); requires {
		analytics.WasteCategories = append(analytics.WasteCategories, schema.WasteWaiting)
		token.UpdateStatus(schema.TokenWaiting, analytics)
		token.SetData(actors.KeyWaitingSince, time.Now().UTC().Format(time.RFC3339Nano))
		e.mu.Unlock()

		taskID, _ := result[actors.KeyHumanTaskID].(string)
		e.log.InfoContext(ctx, "token waiting on human task", "node_id", activity.ID, "task_id", taskID)
		e.publish(ctx, schema.EventTaskCreated, token.ID(), activity.ID, map[string]any{"task_id": taskID})
		e.publish(ctx, schema.EventTokenWaiting, token.ID(), activity.ID, map[string]any{"task_id": taskID})
		return
	}
	e.mu.Unlock()

	if err := e.writeBindings(ctx, activity, result); err != nil {
		e.failToken(ctx, token, started, err)
		return
	}

	e.publish(ctx, schema.EventActivityCompleted, token.ID(), activity.ID, map[string]any{
		"actor_type":   string(activity.ActorType),
		"process_time": analytics.ProcessTime,
	})
	e.advance(ctx, token, activity.ID, analytics)
}

// invoke resolves the actor and executes the activity. An unregistered
// actor kind completes with an empty result rather than failing; the gap
// is visible in the logs.
func (e *Engine) invoke(ctx context.Context, token *Token, activity schema.Activity, data map[string]any) (map[string]any, error) {
	actor, ok := e.registry.Get(activity.ActorType)
	if !ok {
		e.log.WarnContext(ctx, "no actor registered for kind, completing with empty result",
			"actor_type", string(activity.ActorType),
			"node_id", activity.ID)
		return map[string]any{}, nil
	}

	e.log.DebugContext(ctx, "executing activity",
		"node_id", activity.ID,
		"actor_type", string(activity.ActorType))

	return actor.Execute(ctx, actors.Invocation{
		Activity:   activity,
		WorkflowID: e.workflow.ID,
		TokenID:    token.ID(),
		RunID:      e.runID,
		Data:       data,
	})
}

// assembleData builds the data map an actor sees: every read binding's
// context view first, then the token's own data, which wins on key
// collisions.
func (e *Engine) assembleData(ctx context.Context, token *Token, activity schema.Activity) (map[string]any, error) {
	e.mu.Lock()
	own := token.Data()
	e.mu.Unlock()

	merged := make(map[string]any, len(own))
	for _, binding := range activity.ContextBindings {
		if !binding.Reads() {
			continue
		}
		view, err := e.contexts.ReadFor(ctx, binding)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStepFailed, "read context %s", binding.ContextID).
				WithNode(activity.ID).WithCause(err)
		}
		for k, v := range view {
			merged[k] = v
		}
	}
	for k, v := range own {
		merged[k] = v
	}
	return merged, nil
}

// writeBindings pushes an actor result into every write binding's context.
// Marker keys stay on the token; contexts receive payload data only.
func (e *Engine) writeBindings(ctx context.Context, activity schema.Activity, result map[string]any) error {
	payload := scrubMarkers(result)
	if len(payload) == 0 {
		return nil
	}
	for _, binding := range activity.ContextBindings {
		if !binding.Writes() {
			continue
		}
		if err := e.contexts.WriteFor(ctx, binding, payload); err != nil {
			return schema.NewErrorf(schema.ErrCodeStepFailed, "write context %s", binding.ContextID).
				WithNode(activity.ID).WithCause(err)
		}
	}
	return nil
}

// checkControls evaluates the activity's control expressions against the
// token. A failing or erroring mandatory control blocks execution;
// advisory and informational controls only log.
func (e *Engine) checkControls(ctx context.Context, token *Token, activity schema.Activity) error {
	if len(activity.Controls) == 0 {
		return nil
	}

	e.mu.Lock()
	data := token.Data()
	e.mu.Unlock()

	scope := map[string]any{
		expressions.ScopeData: data,
		expressions.ScopeActivity: map[string]any{
			"id":         activity.ID,
			"name":       activity.Name,
			"actor_type": string(activity.ActorType),
		},
		expressions.ScopeWorkflow: map[string]any{
			"id":      e.workflow.ID,
			"name":    e.workflow.Name,
			"version": e.workflow.Version,
		},
	}

	for _, control := range activity.Controls {
		if control.Expression == "" {
			continue
		}

		ok, err := e.cel.EvaluateBool(ctx, control.Expression, scope)
		if control.Enforcement == schema.EnforcementMandatory {
			if err != nil {
				return schema.NewErrorf(schema.ErrCodeStepFailed, "control %s failed to evaluate", control.ID).
					WithNode(activity.ID).WithCause(err)
			}
			if !ok {
				return schema.NewErrorf(schema.ErrCodeStepFailed, "control %s denied execution", control.ID).
					WithNode(activity.ID).
					WithDetails(map[string]any{"control_type": string(control.Type)})
			}
			continue
		}

		// Advisory and informational controls never block.
		if err != nil {
			e.log.WarnContext(ctx, "control evaluation failed",
				"control_id", control.ID, "node_id", activity.ID, "error", err)
		} else if !ok {
			e.log.WarnContext(ctx, "control flagged activity",
				"control_id", control.ID, "node_id", activity.ID,
				"enforcement", string(control.Enforcement))
		}
	}
	return nil
}

// evaluateDecision routes the token through a decision node. No resolvable
// edge is a dead end and fails the token.
func (e *Engine) evaluateDecision(ctx context.Context, token *Token, node schema.DecisionNode) {
	e.mu.Lock()
	data := token.Data()
	e.mu.Unlock()

	edgeID, ok := e.evaluator.Evaluate(node, data)
	e.publish(ctx, schema.EventDecisionEvaluated, token.ID(), node.ID, map[string]any{
		"edge_id": edgeID,
		"matched": ok,
	})

	if !ok {
		e.mu.Lock()
		token.UpdateStatus(schema.TokenFailed, nil)
		e.mu.Unlock()
		e.log.WarnContext(ctx, "decision produced no edge", "node_id", node.ID)
		e.publish(ctx, schema.EventTokenFailed, token.ID(), node.ID, map[string]any{"reason": "no rule matched and no default edge"})
		return
	}

	edge, found := e.graph.edge(edgeID)
	if !found {
		e.mu.Lock()
		token.UpdateStatus(schema.TokenFailed, nil)
		e.mu.Unlock()
		e.log.WarnContext(ctx, "decision returned unknown edge", "node_id", node.ID, "edge_id", edgeID)
		e.publish(ctx, schema.EventTokenFailed, token.ID(), node.ID, map[string]any{"reason": "edge not found", "edge_id": edgeID})
		return
	}

	e.mu.Lock()
	token.Move(edge.TargetID, nil)
	e.mu.Unlock()
	e.publish(ctx, schema.EventTokenMoved, token.ID(), edge.TargetID, map[string]any{"from": node.ID, "edge_id": edgeID})
}

// advance moves the token over its node's first outgoing edge, or
// completes it when the node is a sink.
func (e *Engine) advance(ctx context.Context, token *Token, nodeID string, analytics *schema.Analytics) {
	edge, ok := e.graph.firstOutgoing(nodeID)

	e.mu.Lock()
	if ok {
		token.Move(edge.TargetID, analytics)
	} else {
		token.UpdateStatus(schema.TokenCompleted, analytics)
	}
	e.mu.Unlock()

	if ok {
		e.publish(ctx, schema.EventTokenMoved, token.ID(), edge.TargetID, map[string]any{"from": nodeID, "edge_id": edge.ID})
	} else {
		e.log.InfoContext(ctx, "token completed", "node_id", nodeID)
		e.publish(ctx, schema.EventTokenCompleted, token.ID(), nodeID, nil)
	}
}

// failToken contains a step failure to the offending token: diagnostic
// analytics, FAILED status, and the loop moves on.
func (e *Engine) failToken(ctx context.Context, token *Token, started time.Time, cause error) {
	rate := 1.0
	analytics := &schema.Analytics{
		ProcessTime:     schema.FormatISODuration(time.Since(started)),
		WasteCategories: []schema.WasteCategory{schema.WasteDefects},
		ErrorRate:       &rate,
	}

	e.mu.Lock()
	nodeID := token.NodeID()
	token.UpdateStatus(schema.TokenFailed, analytics)
	e.mu.Unlock()

	e.log.ErrorContext(ctx, "step failed", "node_id", nodeID, "error", cause)
	e.publish(ctx, schema.EventTokenFailed, token.ID(), nodeID, map[string]any{"error": cause.Error()})
}

// ResumeToken wakes a waiting token: the task output merges into its data,
// a wait-time analytic is recorded from the waiting-since stamp, and the
// token advances past the activity it was suspended on. Returns false,
// mutating nothing, unless the token exists and is waiting. Never errors.
func (e *Engine) ResumeToken(ctx context.Context, tokenID string, output map[string]any) bool {
	e.mu.Lock()

	// Only a waiting token may transition back to active.
	token, ok := e.tokensByID[tokenID]
	if !ok || !isValidTokenTransition(token.Status(), schema.TokenActive) {
		e.mu.Unlock()
		return false
	}

	var analytics *schema.Analytics
	if raw, ok := token.GetData(actors.KeyWaitingSince); ok {
		if stamp, sok := raw.(string); sok {
			if since, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
				analytics = &schema.Analytics{
					WaitTime:        schema.FormatISODuration(time.Since(since)),
					WasteCategories: []schema.WasteCategory{schema.WasteWaiting},
				}
			}
		}
	}

	token.MergeData(output)
	token.UpdateStatus(schema.TokenActive, analytics)

	nodeID := token.NodeID()
	if e.status == schema.EngineWaitingHuman {
		e.status = schema.EngineRunning
	}
	e.mu.Unlock()

	ctx = logging.WithTokenID(e.correlate(ctx), tokenID)

	activity, isActivity := e.graph.activity(nodeID)
	if isActivity {
		if err := e.writeBindings(ctx, activity, output); err != nil {
			// Resume never fails; the sync gap is logged and the token
			// still advances with its merged data.
			e.log.WarnContext(ctx, "context write on resume failed", "node_id", nodeID, "error", err)
		}
	}

	var waitTime string
	if analytics != nil {
		waitTime = analytics.WaitTime
	}
	e.log.InfoContext(ctx, "token resumed", "node_id", nodeID, "wait_time", waitTime)
	e.publish(ctx, schema.EventTokenResumed, tokenID, nodeID, map[string]any{"wait_time": waitTime})

	e.advance(ctx, token, nodeID, nil)

	// A resume that completed the last live token settles the run without
	// waiting for a Continue call.
	e.mu.Lock()
	e.finishLocked()
	e.mu.Unlock()
	return true
}

// CancelToken cancels one non-terminal token. Returns false for unknown
// or already-terminal tokens.
func (e *Engine) CancelToken(ctx context.Context, tokenID string) bool {
	e.mu.Lock()
	token, ok := e.tokensByID[tokenID]
	if !ok || !isValidTokenTransition(token.Status(), schema.TokenCancelled) {
		e.mu.Unlock()
		return false
	}
	token.UpdateStatus(schema.TokenCancelled, nil)
	nodeID := token.NodeID()
	e.finishLocked()
	e.mu.Unlock()

	e.publish(ctx, schema.EventTokenCancelled, tokenID, nodeID, nil)
	return true
}

// Cancel aborts the run out-of-band: every non-terminal token is
// cancelled and the engine lands in the cancelled status.
func (e *Engine) Cancel(ctx context.Context) {
	e.mu.Lock()
	if e.status == schema.EngineIdle || e.status == schema.EngineCompleted || e.status == schema.EngineFailed {
		e.mu.Unlock()
		return
	}
	for _, t := range e.tokens {
		if isValidTokenTransition(t.Status(), schema.TokenCancelled) {
			t.UpdateStatus(schema.TokenCancelled, nil)
		}
	}
	e.status = schema.EngineCancelled
	now := time.Now().UTC()
	e.finishedAt = &now
	e.mu.Unlock()

	e.log.InfoContext(ctx, "run cancelled by caller", "run_id", e.runID)
	e.publish(ctx, schema.EventRunCompleted, "", "", map[string]any{"status": string(schema.EngineCancelled)})
}

// successAnalytics builds the measured analytics for a finished activity
// execution. The value-added flag copies the activity's declaration,
// defaulting to true.
func (e *Engine) successAnalytics(activity schema.Activity, elapsed time.Duration) *schema.Analytics {
	iso := schema.FormatISODuration(elapsed)
	valueAdded := true
	if activity.Analytics != nil && activity.Analytics.ValueAdded != nil {
		valueAdded = *activity.Analytics.ValueAdded
	}
	return &schema.Analytics{
		ProcessTime:     iso,
		CycleTime:       iso,
		LeadTime:        iso,
		ValueAdded:      &valueAdded,
		WasteCategories: []schema.WasteCategory{},
	}
}

func (e *Engine) publish(ctx context.Context, eventType, tokenID, nodeID string, payload map[string]any) {
	err := e.hub.Publish(ctx, streaming.RunEvent{
		RunID:      e.runID,
		WorkflowID: e.workflow.ID,
		TokenID:    tokenID,
		NodeID:     nodeID,
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		e.log.DebugContext(ctx, "event publish skipped", "event_type", eventType, "error", err)
	}
}

// scrubMarkers strips engine marker keys from a result before it crosses
// into shared contexts.
func scrubMarkers(result map[string]any) map[string]any {
	out := make(map[string]any, len(result))
	for k, v := range result {
		if len(k) > 0 && k[0] == '_' {
			continue
		}
		out[k] = v
	}
	return out
}
