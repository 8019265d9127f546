package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/awa-io/awa/pkg/schema"
)

// loadWorkflow reads a JSON or YAML workflow document from disk.
func loadWorkflow(path string) (schema.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Workflow{}, fmt.Errorf("read workflow: %w", err)
	}
	workflow, err := schema.ParseWorkflow(data)
	if err != nil {
		return schema.Workflow{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return workflow, nil
}

// parseInputs merges --input-file contents with --input k=v pairs; pairs
// win on key collisions. Values that parse as JSON keep their type,
// everything else stays a string, so --input retries=3 is a number and
// --input name=alice is a string.
func parseInputs(pairs []string, filePath string) (map[string]any, error) {
	inputs := make(map[string]any)

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		var fromFile map[string]any
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			err = json.Unmarshal(data, &fromFile)
		} else {
			err = yaml.Unmarshal(data, &fromFile)
		}
		if err != nil {
			return nil, fmt.Errorf("parse input file %s: %w", filePath, err)
		}
		for k, v := range fromFile {
			inputs[k] = v
		}
	}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q, expected key=value", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			inputs[key] = parsed
		} else {
			inputs[key] = raw
		}
	}

	return inputs, nil
}

// writeOutput writes data to path, or stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
