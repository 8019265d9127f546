package schema

// Context is a named shared data region visible to multiple activities
// under access control. Context definitions live in the workflow; their
// data is owned exclusively by the engine's context manager.
type Context struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Type            ContextType    `json:"type,omitempty"`
	Schema          map[string]any `json:"schema,omitempty"`
	InitialValue    any            `json:"initial_value,omitempty"`
	SyncPattern     SyncPattern    `json:"sync_pattern,omitempty"`
	Visibility      Visibility     `json:"visibility,omitempty"`
	OwnerWorkflowID string         `json:"owner_workflow_id,omitempty"`
	Lifecycle       Lifecycle      `json:"lifecycle,omitempty"`
	TTL             string         `json:"ttl,omitempty"`
	Grants          []AccessGrant  `json:"grants,omitempty"`
}

// AccessGrant binds a role to a context with an access mode. Grants are the
// input to ContextManager.CheckAccess.
type AccessGrant struct {
	RoleID     string     `json:"role_id"`
	AccessMode AccessMode `json:"access_mode"`
}

// ContextBinding attaches a context to an activity with a required access
// mode. Read-mode bindings feed context data into actor invocations;
// write-mode bindings write actor results back.
type ContextBinding struct {
	ID         string      `json:"id,omitempty"`
	ContextID  string      `json:"context_id"`
	ActivityID string      `json:"activity_id,omitempty"`
	AccessMode AccessMode  `json:"access_mode"`
	Required   bool        `json:"required"`
	Transforms *Transforms `json:"transforms,omitempty"`
}

// Transforms are optional jq programs applied when binding data crosses the
// context boundary.
type Transforms struct {
	OnRead  string `json:"on_read,omitempty"`
	OnWrite string `json:"on_write,omitempty"`
}

// Reads reports whether the binding pulls context data into the activity.
func (b ContextBinding) Reads() bool {
	return b.AccessMode == AccessRead || b.AccessMode == AccessReadWrite || b.AccessMode == AccessSubscribe
}

// Writes reports whether the binding pushes activity results into the context.
func (b ContextBinding) Writes() bool {
	return b.AccessMode == AccessWrite || b.AccessMode == AccessReadWrite || b.AccessMode == AccessPublish
}
