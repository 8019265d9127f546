// Package validation checks workflow documents before the engine accepts
// them. The pipeline has three stages: structural (JSON Schema Draft
// 2020-12), semantic (reference integrity), and feasibility (start
// activity and reachability).
package validation

import "github.com/awa-io/awa/pkg/schema"

// WorkflowValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (node, edge, context, and rule references)
// 3. Feasibility (start activity determinable, reachability)
type WorkflowValidator struct {
	jsonSchema *SchemaValidator
}

// New creates a WorkflowValidator with the embedded schema pre-compiled.
func New() (*WorkflowValidator, error) {
	jsv, err := NewSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &WorkflowValidator{jsonSchema: jsv}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: semantic and feasibility stages are
// skipped since the document shape cannot be trusted.
func (wv *WorkflowValidator) Validate(workflow schema.Workflow) *schema.ValidationResult {
	result := validateStructural(wv.jsonSchema, workflow)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(workflow))

	// Feasibility only makes sense over a referentially sound graph.
	if result.Valid() {
		result.Merge(validateFeasibility(workflow))
	}

	return result
}

// validateStructural wraps SchemaValidator.ValidateWorkflow, converting
// its error output into a ValidationResult.
func validateStructural(v *SchemaValidator, workflow schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateWorkflow(workflow)
	if err == nil {
		return result
	}

	awaErr, ok := err.(*schema.Error)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if awaErr.Details != nil {
		if violations, ok := awaErr.Details["violations"].([]string); ok {
			for _, v := range violations {
				result.AddError("/", schema.ErrCodeValidation, v)
			}
			return result
		}
	}
	result.AddError("/", schema.ErrCodeValidation, awaErr.Message)
	return result
}
