package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// TaskNotifier pushes task notifications to connected agents.
type TaskNotifier interface {
	Notify(ctx context.Context, assigneeID string, payload map[string]any) error
}

// MCPNotifier implements TaskNotifier over MCP server push.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes to registered sessions.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the session watching the assignee.
// Best-effort: returns nil if no session is watching.
func (n *MCPNotifier) Notify(_ context.Context, assigneeID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(assigneeID)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session expired between lookup and send; drop the stale mapping.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}
