package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAWAServer(t *testing.T) {
	s := NewAWAServer(AWAServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.sessions)
	assert.NotNil(t, s.notifier)
	assert.NotNil(t, s.logger)
}

func TestToolRegistration(t *testing.T) {
	s := NewAWAServer(AWAServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 6)

	expectedTools := []string{
		"awa_run_workflow",
		"awa_validate_workflow",
		"awa_list_tasks",
		"awa_get_task",
		"awa_complete_task",
		"awa_get_run",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"run", "awa_run_workflow", "Execute a workflow document and return the run result"},
		{"validate", "awa_validate_workflow", "Validate a workflow document without running it"},
		{"list_tasks", "awa_list_tasks", "List pending human tasks, optionally filtered by assignee"},
		{"get_task", "awa_get_task", "Get a human task by id"},
		{"complete_task", "awa_complete_task", "Complete a human task; the suspended run resumes and executes to its next settle point"},
		{"get_run", "awa_get_run", "Get the state of a workflow run"},
	}

	s := NewAWAServer(AWAServerDeps{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
