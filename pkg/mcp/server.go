// Package mcp exposes AWA to agents over the Model Context Protocol.
// Every tool call goes through the service layer, so MCP agents and REST
// clients see the same runs and the same task queue.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/awa-io/awa/internal/service"
)

// AWAServerDeps holds the dependencies for creating an AWAServer.
type AWAServerDeps struct {
	Service *service.Service
	Version string
	Logger  *slog.Logger
}

// AWAServer wraps an MCP server with AWA-specific tool handlers.
type AWAServer struct {
	svc       *service.Service
	sessions  *SessionRegistry
	notifier  *MCPNotifier
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewAWAServer creates a new AWAServer with all 6 tools registered.
func NewAWAServer(deps AWAServerDeps) *AWAServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "1.0.0"
	}

	s := &AWAServer{
		svc:      deps.Service,
		sessions: NewSessionRegistry(),
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"awa",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("AWA executes token-based agentic workflows. Use awa_run_workflow to execute a workflow document, awa_validate_workflow to check a document without running it, awa_list_tasks to see pending human tasks, awa_get_task to inspect one, awa_complete_task to finish a task and resume its run, and awa_get_run to fetch the state of a run."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes. Task notifications run for the lifetime of the transport.
func (s *AWAServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.watchTasks(ctx)

	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *AWAServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 6 registered MCP tools as ServerTool entries.
func (s *AWAServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runWorkflowTool(), Handler: s.handleRunWorkflow},
		{Tool: validateWorkflowTool(), Handler: s.handleValidateWorkflow},
		{Tool: listTasksTool(), Handler: s.handleListTasks},
		{Tool: getTaskTool(), Handler: s.handleGetTask},
		{Tool: completeTaskTool(), Handler: s.handleCompleteTask},
		{Tool: getRunTool(), Handler: s.handleGetRun},
	}
}

// --- Tool definitions ---

func runWorkflowTool() mcp.Tool {
	return mcp.NewTool("awa_run_workflow",
		mcp.WithDescription("Execute a workflow document and return the run result"),
		mcp.WithObject("workflow", mcp.Required(), mcp.Description("Workflow definition document")),
		mcp.WithObject("initial_data", mcp.Description("Initial data for the starting token")),
	)
}

func validateWorkflowTool() mcp.Tool {
	return mcp.NewTool("awa_validate_workflow",
		mcp.WithDescription("Validate a workflow document without running it"),
		mcp.WithObject("workflow", mcp.Required(), mcp.Description("Workflow definition document")),
	)
}

func listTasksTool() mcp.Tool {
	return mcp.NewTool("awa_list_tasks",
		mcp.WithDescription("List pending human tasks, optionally filtered by assignee"),
		mcp.WithString("assignee_id", mcp.Description("Role or user the tasks are assigned to")),
	)
}

func getTaskTool() mcp.Tool {
	return mcp.NewTool("awa_get_task",
		mcp.WithDescription("Get a human task by id"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("ID of the task")),
	)
}

func completeTaskTool() mcp.Tool {
	return mcp.NewTool("awa_complete_task",
		mcp.WithDescription("Complete a human task; the suspended run resumes and executes to its next settle point"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("ID of the task to complete")),
		mcp.WithObject("result", mcp.Description("Task result data merged into the waiting token")),
	)
}

func getRunTool() mcp.Tool {
	return mcp.NewTool("awa_get_run",
		mcp.WithDescription("Get the state of a workflow run"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run")),
	)
}
