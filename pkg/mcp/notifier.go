package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/pathmap/internal/selection"
)

// SelectionNotifier pushes selection changes to the client owning a session.
type SelectionNotifier interface {
	Notify(ctx context.Context, selectionID string, payload map[string]any) error
}

// MCPNotifier implements SelectionNotifier using MCP server push.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes over the client's transport.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the client driving selectionID.
// Best-effort: returns nil if no client is connected for it.
func (n *MCPNotifier) Notify(_ context.Context, selectionID string, payload map[string]any) error {
	clientID, ok := n.sessions.ClientFor(selectionID)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(clientID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Client went away between lookup and send.
		n.sessions.Remove(clientID)
		return nil
	}
	return err
}

// NotifyTransition is a selection.TransitionHook.
func (n *MCPNotifier) NotifyTransition(ctx context.Context, t selection.Transition) {
	_ = n.Notify(ctx, t.SessionID, map[string]any{
		"level":  "info",
		"logger": "pathmap",
		"data": map[string]any{
			"event":      t.EventType(),
			"session_id": t.SessionID,
			"from":       t.From.NodeID,
			"to":         t.To.NodeID,
		},
	})
}
