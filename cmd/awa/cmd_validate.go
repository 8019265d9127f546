package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awa-io/awa/internal/validation"
	"github.com/awa-io/awa/pkg/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.{json,yaml}>",
	Short: "Run the full validation pipeline on a workflow document",
	Long: `Validate checks a workflow document through every stage: structural
schema, referential integrity, graph reachability, expression compilation
and access consistency. Issues print one per line; the exit code is
non-zero when any error-severity issue is found.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	workflow, err := loadWorkflow(args[0])
	if err != nil {
		return err
	}

	validator, err := validation.New()
	if err != nil {
		return err
	}
	result := validator.Validate(workflow)

	for _, issue := range result.Errors {
		fmt.Println(issueLine(issue))
	}
	for _, issue := range result.Warnings {
		fmt.Println(issueLine(issue))
	}

	if !result.Valid() {
		return fmt.Errorf("workflow is invalid: %d error(s), %d warning(s)",
			len(result.Errors), len(result.Warnings))
	}
	fmt.Printf("workflow %q is valid (%d warning(s))\n", workflow.Name, len(result.Warnings))
	return nil
}

// issueLine renders one validation issue: SEVERITY code at path: message.
func issueLine(issue schema.ValidationIssue) string {
	severity := "ERROR"
	if issue.Severity == schema.SeverityWarning {
		severity = "WARN"
	}
	if issue.Path != "" {
		return fmt.Sprintf("%s %s at %s: %s", severity, issue.Code, issue.Path, issue.Message)
	}
	return fmt.Sprintf("%s %s: %s", severity, issue.Code, issue.Message)
}
