// Package builder provides a fluent API for constructing workflow
// definitions in code. Nodes and contexts are declared under plain names;
// Build resolves those names to generated UUIDs, wires decision routing,
// and reports every construction problem at once.
package builder

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/awa-io/awa/pkg/schema"
)

type nodeRef struct {
	id  string
	typ schema.NodeType
}

// Builder accumulates workflow parts. Methods never fail mid-chain;
// problems are recorded and surfaced together by Build. A Builder is
// single-use: do not touch it after Build returns.
type Builder struct {
	workflow schema.Workflow
	nodes    map[string]nodeRef // activity and decision names
	contexts map[string]string  // context name -> id
	decision int                // index of the most recent decision node
	errs     []string
}

// New starts a workflow definition. An empty version defaults to "1.0.0".
func New(name, version string) *Builder {
	if version == "" {
		version = "1.0.0"
	}
	return &Builder{
		workflow: schema.Workflow{
			ID:      uuid.NewString(),
			Name:    name,
			Version: version,
		},
		nodes:    make(map[string]nodeRef),
		contexts: make(map[string]string),
		decision: -1,
	}
}

func (b *Builder) errf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Sprintf(format, args...))
}

// Description sets the workflow description.
func (b *Builder) Description(description string) *Builder {
	b.workflow.Description = description
	return b
}

// Owner sets the owning principal.
func (b *Builder) Owner(ownerID string) *Builder {
	b.workflow.OwnerID = ownerID
	return b
}

// Organization sets the owning organization.
func (b *Builder) Organization(organizationID string) *Builder {
	b.workflow.OrganizationID = organizationID
	return b
}

// Metadata adds one metadata entry.
func (b *Builder) Metadata(key string, value any) *Builder {
	if b.workflow.Metadata == nil {
		b.workflow.Metadata = make(map[string]any)
	}
	b.workflow.Metadata[key] = value
	return b
}

// SLA sets the workflow-level SLA.
func (b *Builder) SLA(sla schema.SLA) *Builder {
	b.workflow.SLA = &sla
	return b
}

// Analytics sets the workflow-level analytics targets.
func (b *Builder) Analytics(analytics schema.Analytics) *Builder {
	b.workflow.Analytics = &analytics
	return b
}

// ContextOption customizes a context declaration.
type ContextOption func(*schema.Context)

// ContextDescription sets the context description.
func ContextDescription(description string) ContextOption {
	return func(c *schema.Context) { c.Description = description }
}

// Sync sets the context synchronization pattern.
func Sync(pattern schema.SyncPattern) ContextOption {
	return func(c *schema.Context) { c.SyncPattern = pattern }
}

// InitialValue seeds the context with a starting value.
func InitialValue(value any) ContextOption {
	return func(c *schema.Context) { c.InitialValue = value }
}

// DataSchema attaches a JSON schema describing the context payload.
func DataSchema(s map[string]any) ContextOption {
	return func(c *schema.Context) { c.Schema = s }
}

// Visibility scopes who can see the context.
func Visibility(v schema.Visibility) ContextOption {
	return func(c *schema.Context) { c.Visibility = v }
}

// Lifecycle sets how long the context data lives.
func Lifecycle(l schema.Lifecycle) ContextOption {
	return func(c *schema.Context) { c.Lifecycle = l }
}

// TTL sets the context time-to-live as an ISO-8601 duration.
func TTL(ttl string) ContextOption {
	return func(c *schema.Context) { c.TTL = ttl }
}

// Grant allows a role to access the context with the given mode.
func Grant(roleID string, mode schema.AccessMode) ContextOption {
	return func(c *schema.Context) {
		c.Grants = append(c.Grants, schema.AccessGrant{RoleID: roleID, AccessMode: mode})
	}
}

// Context declares a shared context. Activities reference it by name
// through WithBinding.
func (b *Builder) Context(name string, typ schema.ContextType, opts ...ContextOption) *Builder {
	if _, exists := b.contexts[name]; exists {
		b.errf("context %q already declared", name)
		return b
	}
	ctx := schema.Context{
		ID:              uuid.NewString(),
		Name:            name,
		Type:            typ,
		Visibility:      schema.VisibilityWorkflow,
		OwnerWorkflowID: b.workflow.ID,
	}
	for _, opt := range opts {
		opt(&ctx)
	}
	b.workflow.Contexts = append(b.workflow.Contexts, ctx)
	b.contexts[name] = ctx.ID
	return b
}

// ActivityOption customizes an activity declaration.
type ActivityOption func(*schema.Activity)

// WithDescription sets the activity description.
func WithDescription(description string) ActivityOption {
	return func(a *schema.Activity) { a.Description = description }
}

// WithRole assigns the role responsible for the activity. Human
// activities need one for task routing.
func WithRole(roleID string) ActivityOption {
	return func(a *schema.Activity) { a.RoleID = roleID }
}

// WithSystem names the external system the activity runs against.
func WithSystem(systemID string) ActivityOption {
	return func(a *schema.Activity) { a.SystemID = systemID }
}

// WithBinding attaches a context to the activity by the name it was
// declared with; Activity resolves the name to the generated id.
func WithBinding(contextName string, mode schema.AccessMode) ActivityOption {
	return func(a *schema.Activity) {
		a.ContextBindings = append(a.ContextBindings, schema.ContextBinding{
			ContextID:  contextName,
			AccessMode: mode,
			Required:   true,
		})
	}
}

// WithProgram attaches executable logic to the activity.
func WithProgram(p schema.Program) ActivityOption {
	return func(a *schema.Activity) { a.Programs = append(a.Programs, p) }
}

// WithControl attaches a governance control to the activity.
func WithControl(c schema.Control) ActivityOption {
	return func(a *schema.Activity) { a.Controls = append(a.Controls, c) }
}

// WithInput declares a named input of the activity.
func WithInput(name string, required bool) ActivityOption {
	return func(a *schema.Activity) {
		a.Inputs = append(a.Inputs, schema.DataObject{Name: name, Required: required})
	}
}

// WithOutput declares a named output of the activity.
func WithOutput(name string, required bool) ActivityOption {
	return func(a *schema.Activity) {
		a.Outputs = append(a.Outputs, schema.DataObject{Name: name, Required: required})
	}
}

// WithAccessRight declares a resource the activity requires.
func WithAccessRight(resourceType schema.ResourceType, resourceID string, permission schema.Permission) ActivityOption {
	return func(a *schema.Activity) {
		a.AccessRights = append(a.AccessRights, schema.AccessRight{
			Name:         fmt.Sprintf("access_%s", resourceID),
			Direction:    schema.DirectionRequires,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Permission:   permission,
		})
	}
}

// WithSLA sets the activity-level SLA.
func WithSLA(sla schema.SLA) ActivityOption {
	return func(a *schema.Activity) { a.SLA = &sla }
}

// WithAnalytics sets the activity-level analytics targets.
func WithAnalytics(analytics schema.Analytics) ActivityOption {
	return func(a *schema.Activity) { a.Analytics = &analytics }
}

// Activity declares a unit of work performed by the given actor kind.
func (b *Builder) Activity(name string, kind schema.ActorKind, opts ...ActivityOption) *Builder {
	if _, exists := b.nodes[name]; exists {
		b.errf("node %q already declared", name)
		return b
	}
	act := schema.Activity{
		ID:        uuid.NewString(),
		Name:      name,
		ActorType: kind,
	}
	for _, opt := range opts {
		opt(&act)
	}

	for i := range act.ContextBindings {
		bind := &act.ContextBindings[i]
		ctxID, ok := b.contexts[bind.ContextID]
		if !ok {
			b.errf("activity %q binds undeclared context %q", name, bind.ContextID)
			continue
		}
		bind.ID = uuid.NewString()
		bind.ContextID = ctxID
		bind.ActivityID = act.ID
	}
	for i := range act.Programs {
		if act.Programs[i].ID == "" {
			act.Programs[i].ID = uuid.NewString()
		}
	}
	for i := range act.Controls {
		if act.Controls[i].ID == "" {
			act.Controls[i].ID = uuid.NewString()
		}
	}
	for i := range act.AccessRights {
		act.AccessRights[i].ID = uuid.NewString()
		act.AccessRights[i].ActivityID = act.ID
	}

	b.workflow.Activities = append(b.workflow.Activities, act)
	b.nodes[name] = nodeRef{id: act.ID, typ: schema.NodeActivity}
	return b
}

// DecisionOption customizes a decision declaration.
type DecisionOption func(*schema.DecisionNode)

// HitPolicy sets how the decision table resolves multiple matches.
func HitPolicy(policy schema.HitPolicy) DecisionOption {
	return func(d *schema.DecisionNode) { d.DecisionTable.HitPolicy = policy }
}

// Decision declares a rule-table branch point. The inputs name the token
// data fields the table matches on; subsequent Rule calls attach to this
// decision until another one is declared.
func (b *Builder) Decision(name string, inputs []string, opts ...DecisionOption) *Builder {
	if _, exists := b.nodes[name]; exists {
		b.errf("node %q already declared", name)
		return b
	}
	node := schema.DecisionNode{
		ID:   uuid.NewString(),
		Name: name,
	}
	for _, in := range inputs {
		node.DecisionTable.Inputs = append(node.DecisionTable.Inputs, schema.TableColumn{Name: in})
	}
	for _, opt := range opts {
		opt(&node)
	}
	b.workflow.DecisionNodes = append(b.workflow.DecisionNodes, node)
	b.nodes[name] = nodeRef{id: node.ID, typ: schema.NodeDecision}
	b.decision = len(b.workflow.DecisionNodes) - 1
	return b
}

// Rule adds a routing rule to the most recent Decision: when the entries
// match the table inputs positionally, the token follows a new edge to
// the named target node. The target must already be declared.
func (b *Builder) Rule(entries []string, targetName string) *Builder {
	if b.decision < 0 {
		b.errf("rule (%v -> %q) requires a preceding decision", entries, targetName)
		return b
	}
	node := &b.workflow.DecisionNodes[b.decision]
	if len(entries) != len(node.DecisionTable.Inputs) {
		b.errf("decision %q rule has %d entries for %d inputs", node.Name, len(entries), len(node.DecisionTable.Inputs))
		return b
	}
	target, ok := b.nodes[targetName]
	if !ok {
		b.errf("decision %q routes to undeclared node %q", node.Name, targetName)
		return b
	}

	edge := schema.Edge{
		ID:         uuid.NewString(),
		SourceID:   node.ID,
		TargetID:   target.id,
		SourceType: schema.NodeDecision,
		TargetType: target.typ,
	}
	b.workflow.Edges = append(b.workflow.Edges, edge)
	node.DecisionTable.Rules = append(node.DecisionTable.Rules, schema.DecisionRule{
		ID:           uuid.NewString(),
		InputEntries: entries,
		OutputEdgeID: edge.ID,
	})
	return b
}

// EdgeOption customizes an edge declaration.
type EdgeOption func(*schema.Edge)

// Condition attaches an advisory condition expression to the edge.
func Condition(expr string) EdgeOption {
	return func(e *schema.Edge) { e.Condition = expr }
}

// Label attaches a display label to the edge.
func Label(label string) EdgeOption {
	return func(e *schema.Edge) { e.Label = label }
}

// Edge connects two declared nodes.
func (b *Builder) Edge(fromName, toName string, opts ...EdgeOption) *Builder {
	b.edge(fromName, toName, false, opts...)
	return b
}

// DefaultEdge connects two declared nodes with the default arc. When the
// source is a decision, the edge also becomes the decision's fallback
// route for tokens no rule matches.
func (b *Builder) DefaultEdge(fromName, toName string, opts ...EdgeOption) *Builder {
	b.edge(fromName, toName, true, opts...)
	return b
}

func (b *Builder) edge(fromName, toName string, isDefault bool, opts ...EdgeOption) {
	source, ok := b.nodes[fromName]
	if !ok {
		b.errf("edge source %q not declared", fromName)
		return
	}
	target, ok := b.nodes[toName]
	if !ok {
		b.errf("edge target %q not declared", toName)
		return
	}

	edge := schema.Edge{
		ID:         uuid.NewString(),
		SourceID:   source.id,
		TargetID:   target.id,
		SourceType: source.typ,
		TargetType: target.typ,
		IsDefault:  isDefault,
	}
	for _, opt := range opts {
		opt(&edge)
	}
	b.workflow.Edges = append(b.workflow.Edges, edge)

	if isDefault && source.typ == schema.NodeDecision {
		for i := range b.workflow.DecisionNodes {
			if b.workflow.DecisionNodes[i].ID == source.id {
				b.workflow.DecisionNodes[i].DefaultOutputEdgeID = edge.ID
				break
			}
		}
	}
}

// ActivityID returns the generated id of a declared activity.
func (b *Builder) ActivityID(name string) (string, bool) {
	ref, ok := b.nodes[name]
	if !ok || ref.typ != schema.NodeActivity {
		return "", false
	}
	return ref.id, true
}

// ContextID returns the generated id of a declared context.
func (b *Builder) ContextID(name string) (string, bool) {
	id, ok := b.contexts[name]
	return id, ok
}

// Build finalizes the workflow. All problems recorded during construction
// plus final integrity checks are reported together as one configuration
// error; on success the returned workflow is ready for the engine.
func (b *Builder) Build() (*schema.Workflow, error) {
	if b.workflow.Name == "" {
		b.errf("workflow name is required")
	}
	if len(b.workflow.Activities) == 0 {
		b.errf("workflow has no activities")
	}
	for _, node := range b.workflow.DecisionNodes {
		if len(node.DecisionTable.Rules) == 0 && node.DefaultOutputEdgeID == "" {
			b.errf("decision %q has no rules and no default edge", node.Name)
		}
	}
	if len(b.errs) > 0 {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "workflow construction failed with %d errors", len(b.errs)).
			WithDetails(map[string]any{"errors": b.errs})
	}

	now := time.Now().UTC()
	wf := b.workflow
	wf.Activities = append([]schema.Activity(nil), b.workflow.Activities...)
	wf.Edges = append([]schema.Edge(nil), b.workflow.Edges...)
	wf.Contexts = append([]schema.Context(nil), b.workflow.Contexts...)
	wf.DecisionNodes = append([]schema.DecisionNode(nil), b.workflow.DecisionNodes...)
	wf.CreatedAt = &now
	wf.UpdatedAt = &now
	return &wf, nil
}
