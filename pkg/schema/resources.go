package schema

import "time"

// Role identifies who may perform activities and what capabilities it has.
type Role struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	ActorType      ActorKind      `json:"actor_type"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Capabilities   []string       `json:"capabilities,omitempty"`
	IsEmbedded     bool           `json:"is_embedded,omitempty"`
	AIModelConfig  *AIModelConfig `json:"ai_model_config,omitempty"`
	MCPTools       []MCPTool      `json:"mcp_tools,omitempty"`
}

// AIModelConfig parameterizes the generative model behind an AI role.
type AIModelConfig struct {
	ModelID      string   `json:"model_id,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
}

// MCPTool names a tool an AI role may call on an MCP server.
type MCPTool struct {
	ServerName string `json:"server_name"`
	ToolName   string `json:"tool_name"`
}

// System is an external software system referenced by activities.
type System struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Vendor      string         `json:"vendor,omitempty"`
	Version     string         `json:"version,omitempty"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	BaseURL     string         `json:"base_url,omitempty"`
	AuthConfig  map[string]any `json:"auth_config,omitempty"`
}

// Machine is a physical device a robot activity dispatches to.
type Machine struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Manufacturer     string `json:"manufacturer,omitempty"`
	Model            string `json:"model,omitempty"`
	SerialNumber     string `json:"serial_number,omitempty"`
	Location         string `json:"location,omitempty"`
	Protocol         string `json:"protocol,omitempty"`
	ConnectionString string `json:"connection_string,omitempty"`
}

// Endpoint is a callable API surface on a system.
type Endpoint struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	URL            string         `json:"url"`
	Method         string         `json:"method,omitempty"`
	AuthType       string         `json:"auth_type,omitempty"`
	OpenAPIRef     string         `json:"openapi_ref,omitempty"`
	RequestSchema  map[string]any `json:"request_schema,omitempty"`
	ResponseSchema map[string]any `json:"response_schema,omitempty"`
}

// Collection groups related workflows and the contexts they share.
type Collection struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	WorkflowIDs    []string   `json:"workflow_ids,omitempty"`
	SharedContexts []Context  `json:"shared_contexts,omitempty"`
	OwnerID        string     `json:"owner_id,omitempty"`
	OrganizationID string     `json:"organization_id,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}
