package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/awa-io/awa/pkg/schema"
)

// workflowSchemaJSON is the JSON Schema for workflow documents.
// Embedded as a constant to avoid filesystem dependencies.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://awa.dev/schemas/workflow.json",
  "type": "object",
  "required": ["id", "name", "activities"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "name": { "type": "string", "minLength": 1 },
    "version": { "type": "string" },
    "description": { "type": "string" },
    "owner_id": { "type": "string" },
    "organization_id": { "type": "string" },
    "parent_workflow_id": { "type": "string" },
    "expansion_activity_id": { "type": "string" },
    "activities": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/activity" }
    },
    "edges": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/edge" }
    },
    "events": {
      "type": "array",
      "items": { "$ref": "#/$defs/event" }
    },
    "decision_nodes": {
      "type": "array",
      "items": { "$ref": "#/$defs/decision_node" }
    },
    "contexts": {
      "type": "array",
      "items": { "$ref": "#/$defs/context" }
    },
    "sla": { "type": "object" },
    "analytics": { "type": "object" },
    "metadata": { "type": "object" },
    "created_at": { "type": "string" },
    "updated_at": { "type": "string" }
  },
  "$defs": {
    "activity": {
      "type": "object",
      "required": ["id", "name", "actor_type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string", "minLength": 1 },
        "description": { "type": "string" },
        "role_id": { "type": "string" },
        "actor_type": {
          "type": "string",
          "enum": ["human", "ai_agent", "robot", "application"]
        },
        "system_id": { "type": "string" },
        "machine_id": { "type": "string" },
        "endpoint_id": { "type": "string" },
        "organization_id": { "type": "string" },
        "inputs": { "type": "array" },
        "outputs": { "type": "array" },
        "context_bindings": {
          "type": "array",
          "items": { "$ref": "#/$defs/context_binding" }
        },
        "access_rights": { "type": "array" },
        "programs": {
          "type": "array",
          "items": { "$ref": "#/$defs/program" }
        },
        "controls": {
          "type": "array",
          "items": { "$ref": "#/$defs/control" }
        },
        "sla": { "type": "object" },
        "analytics": { "type": "object" },
        "is_expandable": { "type": "boolean" },
        "expansion_workflow_id": { "type": "string" }
      }
    },
    "edge": {
      "type": "object",
      "required": ["id", "source_id", "target_id"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "source_id": { "type": "string", "minLength": 1 },
        "target_id": { "type": "string", "minLength": 1 },
        "source_type": {
          "type": "string",
          "enum": ["activity", "event", "decision"]
        },
        "target_type": {
          "type": "string",
          "enum": ["activity", "event", "decision"]
        },
        "condition": { "type": "string" },
        "label": { "type": "string" },
        "is_default": { "type": "boolean" }
      }
    },
    "event": {
      "type": "object",
      "required": ["id", "name", "event_type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "description": { "type": "string" },
        "event_type": { "type": "string" },
        "event_definition": { "type": "object" }
      }
    },
    "decision_node": {
      "type": "object",
      "required": ["id", "decision_table"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "description": { "type": "string" },
        "decision_table": { "$ref": "#/$defs/decision_table" },
        "default_output_edge_id": { "type": "string" }
      }
    },
    "decision_table": {
      "type": "object",
      "properties": {
        "hit_policy": {
          "type": "string",
          "enum": ["unique", "first", "priority", "any", "collect", "rule_order"]
        },
        "inputs": {
          "type": "array",
          "items": { "$ref": "#/$defs/table_column" }
        },
        "outputs": {
          "type": "array",
          "items": { "$ref": "#/$defs/table_column" }
        },
        "rules": {
          "type": "array",
          "items": { "$ref": "#/$defs/decision_rule" }
        }
      }
    },
    "table_column": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "label": { "type": "string" },
        "type": { "type": "string" }
      }
    },
    "decision_rule": {
      "type": "object",
      "required": ["output_edge_id"],
      "properties": {
        "input_entries": {
          "type": "array",
          "items": { "type": "string" }
        },
        "output_entries": { "type": "array" },
        "output_edge_id": { "type": "string", "minLength": 1 },
        "description": { "type": "string" }
      }
    },
    "context": {
      "type": "object",
      "required": ["id", "name"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string", "minLength": 1 },
        "description": { "type": "string" },
        "type": {
          "type": "string",
          "enum": ["document", "data", "config", "state", "memory", "artifact"]
        },
        "schema": { "type": "object" },
        "initial_value": {},
        "sync_pattern": {
          "type": "string",
          "enum": ["shared_state", "message_passing", "blackboard", "event_sourcing"]
        },
        "visibility": {
          "type": "string",
          "enum": ["private", "workflow", "collection", "global"]
        },
        "owner_workflow_id": { "type": "string" },
        "lifecycle": {
          "type": "string",
          "enum": ["transient", "persistent", "cached"]
        },
        "ttl": { "type": "string" },
        "grants": {
          "type": "array",
          "items": { "$ref": "#/$defs/access_grant" }
        }
      }
    },
    "access_grant": {
      "type": "object",
      "required": ["role_id", "access_mode"],
      "properties": {
        "role_id": { "type": "string", "minLength": 1 },
        "access_mode": {
          "type": "string",
          "enum": ["read", "write", "read_write", "subscribe", "publish"]
        }
      }
    },
    "context_binding": {
      "type": "object",
      "required": ["context_id", "access_mode"],
      "properties": {
        "id": { "type": "string" },
        "context_id": { "type": "string", "minLength": 1 },
        "activity_id": { "type": "string" },
        "access_mode": {
          "type": "string",
          "enum": ["read", "write", "read_write", "subscribe", "publish"]
        },
        "required": { "type": "boolean" },
        "transforms": {
          "type": "object",
          "properties": {
            "on_read": { "type": "string" },
            "on_write": { "type": "string" }
          }
        }
      }
    },
    "program": {
      "type": "object",
      "required": ["id", "language"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "language": { "type": "string", "minLength": 1 },
        "code": { "type": "string" },
        "code_uri": { "type": "string" },
        "parameters": { "type": "array" },
        "mcp_server": { "type": "string" }
      }
    },
    "control": {
      "type": "object",
      "required": ["id", "type", "enforcement"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "description": { "type": "string" },
        "type": {
          "type": "string",
          "enum": ["authorization", "validation", "audit", "compliance", "security", "rate_limit"]
        },
        "expression": { "type": "string" },
        "enforcement": {
          "type": "string",
          "enum": ["mandatory", "advisory", "informational"]
        }
      }
    }
  }
}`

// SchemaValidator checks workflow documents against the embedded JSON
// Schema (Draft 2020-12). It is safe for concurrent use.
type SchemaValidator struct {
	workflowSchema *jsonschema.Schema
}

// NewSchemaValidator compiles the embedded workflow schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(workflowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal workflow schema: %w", err)
	}
	if err := c.AddResource("https://awa.dev/schemas/workflow.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add workflow schema resource: %w", err)
	}

	compiled, err := c.Compile("https://awa.dev/schemas/workflow.json")
	if err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}

	return &SchemaValidator{workflowSchema: compiled}, nil
}

// ValidateWorkflow validates a workflow value against the schema.
func (v *SchemaValidator) ValidateWorkflow(workflow schema.Workflow) error {
	doc, err := toJSONValue(workflow)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize workflow").WithCause(err)
	}
	if err := v.workflowSchema.Validate(doc); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toSchemaError converts a jsonschema.ValidationError into an Error with
// one message per violation.
func toSchemaError(err error) *schema.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
