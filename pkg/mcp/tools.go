package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/awa-io/awa/internal/streaming"
	"github.com/awa-io/awa/pkg/schema"
)

// handleRunWorkflow executes a workflow document through the service.
func (s *AWAServer) handleRunWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc := mcp.ParseStringMap(req, "workflow", nil)
	if doc == nil {
		return mcp.NewToolResultError("workflow is required"), nil
	}
	initialData := mcp.ParseStringMap(req, "initial_data", nil)

	raw, err := json.Marshal(doc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid workflow document: %v", err)), nil
	}

	result, runErr := s.svc.RunWorkflowDoc(ctx, raw, initialData)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow run failed: %v", runErr)), nil
	}
	return marshalResult(result)
}

// handleValidateWorkflow runs the full validation pipeline on a document.
func (s *AWAServer) handleValidateWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc := mcp.ParseStringMap(req, "workflow", nil)
	if doc == nil {
		return mcp.NewToolResultError("workflow is required"), nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid workflow document: %v", err)), nil
	}
	workflow, parseErr := schema.ParseWorkflow(raw)
	if parseErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse failed: %v", parseErr)), nil
	}

	verdict := s.svc.ValidateWorkflow(workflow)
	return marshalResult(map[string]any{
		"valid":    verdict.Valid(),
		"errors":   verdict.Errors,
		"warnings": verdict.Warnings,
	})
}

// handleListTasks lists pending human tasks. When the caller names an
// assignee, its MCP session is remembered so new tasks for that assignee
// can be pushed as notifications.
func (s *AWAServer) handleListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	assigneeID := req.GetString("assignee_id", "")
	if assigneeID != "" {
		s.captureSession(ctx, assigneeID)
	}

	tasks, err := s.svc.ListTasks(ctx, assigneeID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("task query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"tasks": tasks, "count": len(tasks)})
}

// handleGetTask returns one human task.
func (s *AWAServer) handleGetTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("task_id is required"), nil
	}

	task, getErr := s.svc.GetTask(ctx, taskID)
	if getErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("task lookup failed: %v", getErr)), nil
	}
	return marshalResult(task)
}

// handleCompleteTask completes a task and resumes its suspended run.
func (s *AWAServer) handleCompleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	data := mcp.ParseStringMap(req, "result", nil)

	task, run, completeErr := s.svc.CompleteTask(ctx, taskID, data)
	if completeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("task completion failed: %v", completeErr)), nil
	}

	resp := map[string]any{"task": task}
	if run != nil {
		resp["run"] = run
	}
	return marshalResult(resp)
}

// handleGetRun returns the state of a live or archived run.
func (s *AWAServer) handleGetRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	record, getErr := s.svc.GetRun(ctx, runID)
	if getErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run lookup failed: %v", getErr)), nil
	}
	return marshalResult(record)
}

// --- Task notifications ---

// watchTasks forwards task_created events to the assignee's MCP session.
// Push is best-effort; agents that never list their tasks are not known
// and simply poll instead.
func (s *AWAServer) watchTasks(ctx context.Context) {
	events, unsubscribe, err := s.svc.Hub().Subscribe(ctx, streaming.EventFilter{
		EventTypes: []string{schema.EventTaskCreated},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "task notifications disabled", "error", err)
		return
	}

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				s.notifyTask(ctx, event)
			}
		}
	}()
}

func (s *AWAServer) notifyTask(ctx context.Context, event streaming.RunEvent) {
	payload, _ := event.Payload.(map[string]any)
	taskID, _ := payload["task_id"].(string)
	if taskID == "" {
		return
	}

	task, err := s.svc.GetTask(ctx, taskID)
	if err != nil || task.AssigneeID == "" {
		return
	}

	err = s.notifier.Notify(ctx, task.AssigneeID, map[string]any{
		"type":        "task_created",
		"task_id":     task.ID,
		"activity_id": task.ActivityID,
		"workflow_id": task.WorkflowID,
		"run_id":      event.RunID,
	})
	if err != nil {
		s.logger.DebugContext(ctx, "task notification failed", "task_id", task.ID, "error", err)
	}
}

// captureSession maps the assignee to its current MCP session for
// notifications.
func (s *AWAServer) captureSession(ctx context.Context, assigneeID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(assigneeID, session.SessionID())
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
