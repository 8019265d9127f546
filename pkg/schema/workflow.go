package schema

import "time"

// Workflow is the complete definition of an agentic workflow: a directed
// graph of activities, events, and decision nodes connected by edges, plus
// the shared contexts the graph operates on. Workflows are immutable once
// handed to an engine.
type Workflow struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Version             string         `json:"version"`
	Description         string         `json:"description,omitempty"`
	OwnerID             string         `json:"owner_id,omitempty"`
	OrganizationID      string         `json:"organization_id,omitempty"`
	ParentWorkflowID    string         `json:"parent_workflow_id,omitempty"`
	ExpansionActivityID string         `json:"expansion_activity_id,omitempty"`
	Activities          []Activity     `json:"activities"`
	Edges               []Edge         `json:"edges"`
	Events              []Event        `json:"events,omitempty"`
	DecisionNodes       []DecisionNode `json:"decision_nodes,omitempty"`
	Contexts            []Context      `json:"contexts,omitempty"`
	SLA                 *SLA           `json:"sla,omitempty"`
	Analytics           *Analytics     `json:"analytics,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	CreatedAt           *time.Time     `json:"created_at,omitempty"`
	UpdatedAt           *time.Time     `json:"updated_at,omitempty"`
}

// Activity is a unit of work assigned to an actor kind. Activities never
// mutate after workflow load; all execution state lives on tokens.
type Activity struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Description         string           `json:"description,omitempty"`
	RoleID              string           `json:"role_id"`
	ActorType           ActorKind        `json:"actor_type"`
	SystemID            string           `json:"system_id,omitempty"`
	MachineID           string           `json:"machine_id,omitempty"`
	EndpointID          string           `json:"endpoint_id,omitempty"`
	OrganizationID      string           `json:"organization_id,omitempty"`
	Inputs              []DataObject     `json:"inputs,omitempty"`
	Outputs             []DataObject     `json:"outputs,omitempty"`
	ContextBindings     []ContextBinding `json:"context_bindings,omitempty"`
	AccessRights        []AccessRight    `json:"access_rights,omitempty"`
	Programs            []Program        `json:"programs,omitempty"`
	Controls            []Control        `json:"controls,omitempty"`
	SLA                 *SLA             `json:"sla,omitempty"`
	Analytics           *Analytics       `json:"analytics,omitempty"`
	IsExpandable        bool             `json:"is_expandable,omitempty"`
	ExpansionWorkflowID string           `json:"expansion_workflow_id,omitempty"`
}

// Edge is a directed arc between two graph nodes. Condition is advisory
// metadata only; branching decisions live in decision tables.
type Edge struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	SourceType NodeType  `json:"source_type,omitempty"`
	TargetType NodeType  `json:"target_type,omitempty"`
	Condition  string    `json:"condition,omitempty"`
	Label      string    `json:"label,omitempty"`
	IsDefault  bool      `json:"is_default,omitempty"`
}

// Event is a named occurrence in the graph. The engine resolves edge
// references to events but does not otherwise interpret them.
type Event struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	EventType       string         `json:"event_type"`
	EventDefinition map[string]any `json:"event_definition,omitempty"`
}

// DataObject declares an input or output of an activity.
type DataObject struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
	Required    bool           `json:"required"`
}

// Parameter is a named program parameter.
type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// Program is executable logic attached to an activity. Programs with
// language "expr" are evaluated in-process by the software actor; other
// languages are integration metadata.
type Program struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Language   string      `json:"language"`
	Code       string      `json:"code,omitempty"`
	CodeURI    string      `json:"code_uri,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`
	MCPServer  string      `json:"mcp_server,omitempty"`
}

// Control is a governance check attached to an activity. Mandatory controls
// with a CEL expression gate execution; advisory and informational controls
// are logged only.
type Control struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        ControlType `json:"type"`
	Expression  string      `json:"expression,omitempty"`
	Enforcement Enforcement `json:"enforcement"`
}

// AccessRight declares a resource an activity requires or provisions.
type AccessRight struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	ActivityID   string          `json:"activity_id,omitempty"`
	Direction    AccessDirection `json:"direction"`
	ResourceType ResourceType    `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Permission   Permission      `json:"permission"`
	Scope        string          `json:"scope,omitempty"`
	Conditions   map[string]any  `json:"conditions,omitempty"`
}
