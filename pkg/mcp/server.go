package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/pathmap/internal/app"
	"github.com/rendis/pathmap/internal/diagram"
)

// serverVersion is reported in the MCP handshake.
const serverVersion = "1.0.0"

// PathmapServerDeps holds the dependencies for creating a PathmapServer.
type PathmapServerDeps struct {
	App    *app.App
	Logger *slog.Logger
}

// PathmapServer wraps an MCP server with pathmap tool handlers.
type PathmapServer struct {
	app       *app.App
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  *MCPNotifier
	mcpServer *server.MCPServer
}

// NewPathmapServer creates a new PathmapServer with every tool registered.
// Selection changes are pushed to the MCP client that owns the session.
func NewPathmapServer(deps PathmapServerDeps) *PathmapServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &PathmapServer{
		app:      deps.App,
		logger:   logger,
		sessions: NewSessionRegistry(),
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.forgetClient(session.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		"pathmap",
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions("pathmap serves a directed graph of process stages with detail content per stage. "+
			"Use pathmap.layout to read the compiled diagram, pathmap.nodes to search stages, pathmap.select and pathmap.close "+
			"to drive a selection session, pathmap.panel to read what the detail panel shows, pathmap.render to export the "+
			"diagram, pathmap.query to read stored datasets, events and stats, and pathmap.reload to re-read the dataset."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)

	if s.app != nil {
		s.app.Sessions().OnChange(s.notifier.NotifyTransition)
	}
	return s
}

// forgetClient drops the notification routes of a disconnected MCP client
// and the selection session it owned by default.
func (s *PathmapServer) forgetClient(clientID string) {
	s.sessions.Remove(clientID)
	if s.app != nil {
		s.app.Sessions().Remove(clientSelectionID(clientID))
	}
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *PathmapServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// SSEHandler returns the SSE transport as an http.Handler serving /sse and
// /message, for mounting next to the web panel.
func (s *PathmapServer) SSEHandler(baseURL string) http.Handler {
	return server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))
}

// ServeSSE runs the SSE transport on its own listener until ctx is cancelled.
func (s *PathmapServer) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	errCh := make(chan error, 1)
	go func() { errCh <- sse.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return http.ErrServerClosed
	}
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *PathmapServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *PathmapServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: layoutTool(), Handler: s.handleLayout},
		{Tool: nodesTool(), Handler: s.handleNodes},
		{Tool: selectTool(), Handler: s.handleSelect},
		{Tool: closeTool(), Handler: s.handleClose},
		{Tool: panelTool(), Handler: s.handlePanel},
		{Tool: renderTool(), Handler: s.handleRender},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: reloadTool(), Handler: s.handleReload},
	}
}

// --- Tool definitions ---

func layoutTool() mcp.Tool {
	return mcp.NewTool("pathmap.layout",
		mcp.WithDescription("Get the compiled diagram layout: nodes with positions and styles, edges, columns and legend"),
		mcp.WithString("jq", mcp.Description("Optional jq expression evaluated over the layout JSON")),
	)
}

func nodesTool() mcp.Tool {
	return mcp.NewTool("pathmap.nodes",
		mcp.WithDescription("List diagram stages, optionally filtered by a predicate"),
		mcp.WithString("where", mcp.Description("Predicate over id, label, category, x, y, column, in_degree, out_degree, has_detail, detail")),
		mcp.WithString("lang",
			mcp.Enum("cel", "expr"),
			mcp.Description("Predicate language (default: cel)"),
		),
	)
}

func selectTool() mcp.Tool {
	return mcp.NewTool("pathmap.select",
		mcp.WithDescription("Select a stage, opening the detail panel of a session"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("ID of the stage to select")),
		mcp.WithString("session_id", mcp.Description("Selection session (default: one session per MCP connection)")),
	)
}

func closeTool() mcp.Tool {
	return mcp.NewTool("pathmap.close",
		mcp.WithDescription("Close the detail panel of a session"),
		mcp.WithString("session_id", mcp.Description("Selection session (default: one session per MCP connection)")),
		mcp.WithString("source",
			mcp.Enum("close_button", "overlay", "keyboard", "api"),
			mcp.Description("Which control closed the panel (default: api)"),
		),
	)
}

func panelTool() mcp.Tool {
	return mcp.NewTool("pathmap.panel",
		mcp.WithDescription("Get what the detail panel of a session currently shows"),
		mcp.WithString("session_id", mcp.Description("Selection session (default: one session per MCP connection)")),
	)
}

func renderTool() mcp.Tool {
	formats := make([]string, len(diagram.Formats))
	for i, f := range diagram.Formats {
		formats[i] = string(f)
	}
	return mcp.NewTool("pathmap.render",
		mcp.WithDescription("Render the diagram. Returns ASCII art, Mermaid flowchart syntax, SVG, layout JSON or a PNG image"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum(formats...),
			mcp.Description("Output format"),
		),
		mcp.WithString("selected", mcp.Description("Stage to highlight")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("pathmap.query",
		mcp.WithDescription("Query stored datasets, interaction events, or view statistics"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("datasets", "events", "stats", "sessions"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (name, event_type, session_id, node_id, since, limit)")),
	)
}

func reloadTool() mcp.Tool {
	return mcp.NewTool("pathmap.reload",
		mcp.WithDescription("Re-read the dataset source and swap in the new diagram when it changed"),
	)
}
