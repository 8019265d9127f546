package schema

// ActorKind identifies who (or what) performs an activity.
type ActorKind string

const (
	ActorHuman       ActorKind = "human"
	ActorAIAgent     ActorKind = "ai_agent"
	ActorRobot       ActorKind = "robot"
	ActorApplication ActorKind = "application"
)

// AccessMode describes how a role or binding interacts with a context.
type AccessMode string

const (
	AccessRead      AccessMode = "read"
	AccessWrite     AccessMode = "write"
	AccessReadWrite AccessMode = "read_write"
	AccessSubscribe AccessMode = "subscribe"
	AccessPublish   AccessMode = "publish"
)

// SyncPattern is advisory metadata describing how a context is shared.
// The engine always applies last-writer-wins regardless of the pattern.
type SyncPattern string

const (
	SyncSharedState    SyncPattern = "shared_state"
	SyncMessagePassing SyncPattern = "message_passing"
	SyncBlackboard     SyncPattern = "blackboard"
	SyncEventSourcing  SyncPattern = "event_sourcing"
)

// ContextType is the semantic type of a shared context.
type ContextType string

const (
	ContextDocument ContextType = "document"
	ContextData     ContextType = "data"
	ContextConfig   ContextType = "config"
	ContextState    ContextType = "state"
	ContextMemory   ContextType = "memory"
	ContextArtifact ContextType = "artifact"
)

// Visibility scopes who can see a context.
type Visibility string

const (
	VisibilityPrivate    Visibility = "private"
	VisibilityWorkflow   Visibility = "workflow"
	VisibilityCollection Visibility = "collection"
	VisibilityGlobal     Visibility = "global"
)

// Permission is the capability granted by an access right.
type Permission string

const (
	PermissionRead    Permission = "read"
	PermissionWrite   Permission = "write"
	PermissionExecute Permission = "execute"
	PermissionAdmin   Permission = "admin"
	PermissionDelete  Permission = "delete"
	PermissionCreate  Permission = "create"
)

// ResourceType classifies the resource an access right refers to.
type ResourceType string

const (
	ResourceSystem   ResourceType = "system"
	ResourceAPI      ResourceType = "api"
	ResourceDatabase ResourceType = "database"
	ResourceFile     ResourceType = "file"
	ResourceService  ResourceType = "service"
	ResourceSecret   ResourceType = "secret"
)

// AccessDirection says whether an activity requires or provisions a resource.
type AccessDirection string

const (
	DirectionRequires   AccessDirection = "requires"
	DirectionProvisions AccessDirection = "provisions"
)

// HitPolicy declares how a decision table resolves multiple matching rules.
// Evaluation currently treats every policy as first-match (see DecisionNode).
type HitPolicy string

const (
	HitPolicyUnique    HitPolicy = "unique"
	HitPolicyFirst     HitPolicy = "first"
	HitPolicyPriority  HitPolicy = "priority"
	HitPolicyAny       HitPolicy = "any"
	HitPolicyCollect   HitPolicy = "collect"
	HitPolicyRuleOrder HitPolicy = "rule_order"
)

// WasteCategory is a lean-manufacturing analytics tag attached to step metrics.
type WasteCategory string

const (
	WasteDefects           WasteCategory = "defects"
	WasteOverproduction    WasteCategory = "overproduction"
	WasteWaiting           WasteCategory = "waiting"
	WasteNonUtilizedTalent WasteCategory = "non_utilized_talent"
	WasteTransport         WasteCategory = "transport"
	WasteInventory         WasteCategory = "inventory"
	WasteMotion            WasteCategory = "motion"
	WasteExtraProcessing   WasteCategory = "extra_processing"
)

// NodeType classifies a graph node referenced by an edge.
type NodeType string

const (
	NodeActivity NodeType = "activity"
	NodeEvent    NodeType = "event"
	NodeDecision NodeType = "decision"
)

// ControlType classifies a governance control attached to an activity.
type ControlType string

const (
	ControlAuthorization ControlType = "authorization"
	ControlValidation    ControlType = "validation"
	ControlAudit         ControlType = "audit"
	ControlCompliance    ControlType = "compliance"
	ControlSecurity      ControlType = "security"
	ControlRateLimit     ControlType = "rate_limit"
)

// Enforcement is how strictly a control is applied.
type Enforcement string

const (
	EnforcementMandatory     Enforcement = "mandatory"
	EnforcementAdvisory      Enforcement = "advisory"
	EnforcementInformational Enforcement = "informational"
)

// Lifecycle describes how long context data is expected to live.
type Lifecycle string

const (
	LifecycleTransient  Lifecycle = "transient"
	LifecyclePersistent Lifecycle = "persistent"
	LifecycleCached     Lifecycle = "cached"
)
