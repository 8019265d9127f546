package schema

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseWorkflow decodes a workflow document from JSON or YAML. JSON is
// detected by the first non-whitespace byte; everything else is treated as
// YAML and converted through a JSON round trip so the json field names
// stay authoritative for both formats.
func ParseWorkflow(data []byte) (Workflow, error) {
	var workflow Workflow

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return workflow, NewError(ErrCodeValidation, "empty workflow document")
	}

	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &workflow); err != nil {
			return workflow, NewError(ErrCodeValidation, "parse workflow json").WithCause(err)
		}
		return workflow, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return workflow, NewError(ErrCodeValidation, "parse workflow yaml").WithCause(err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return workflow, NewError(ErrCodeValidation, "convert workflow yaml").WithCause(err)
	}
	if err := json.Unmarshal(raw, &workflow); err != nil {
		return workflow, NewError(ErrCodeValidation, "parse workflow document").WithCause(err)
	}
	return workflow, nil
}
