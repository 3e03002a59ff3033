package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/pathmap/internal/diagram"
	"github.com/rendis/pathmap/internal/expressions"
	"github.com/rendis/pathmap/internal/selection"
	"github.com/rendis/pathmap/internal/store"
	"github.com/rendis/pathmap/pkg/schema"
)

// defaultSelection is used by callers without an MCP client session
// (in-process calls, tests).
const defaultSelection = "mcp-default"

type panelResult struct {
	SessionID string              `json:"session_id"`
	Event     string              `json:"event,omitempty"`
	Changed   bool                `json:"changed"`
	Title     string              `json:"title,omitempty"`
	View      selection.PanelView `json:"view"`
}

// handleLayout returns the compiled layout or a jq projection of it.
func (s *PathmapServer) handleLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.app.Snapshot()
	jq := req.GetString("jq", "")
	if jq == "" {
		return marshalResult(snap.Layout)
	}
	out, err := s.app.Querier().QueryLayout(ctx, jq, snap.Layout)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("layout query failed: %v", err)), nil
	}
	return marshalResult(out)
}

// handleNodes lists stages, optionally filtered by a predicate.
func (s *PathmapServer) handleNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.app.Snapshot()
	where := req.GetString("where", "")
	if where == "" {
		return marshalResult(snap.Layout.Nodes)
	}
	lang := req.GetString("lang", expressions.LangCEL)
	nodes, err := s.app.Querier().FilterNodes(ctx, lang, where, snap.Layout, snap.Details)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("node filter failed: %v", err)), nil
	}
	return marshalResult(nodes)
}

// handleSelect selects a stage in a session.
func (s *PathmapServer) handleSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	ctl := s.selectionSession(ctx, req)

	t, err := ctl.ClickNode(ctx, nodeID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("select failed: %v", err)), nil
	}
	return marshalResult(newPanelResult(ctl, t))
}

// handleClose closes the detail panel of a session.
func (s *PathmapServer) handleClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source := schema.CloseSource(req.GetString("source", string(schema.CloseSourceAPI)))
	switch source {
	case schema.CloseSourceButton, schema.CloseSourceOverlay, schema.CloseSourceKeyboard, schema.CloseSourceAPI:
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown close source %q", source)), nil
	}
	ctl := s.selectionSession(ctx, req)

	t, err := ctl.RequestClose(ctx, source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("close failed: %v", err)), nil
	}
	return marshalResult(newPanelResult(ctl, t))
}

// handlePanel returns the current panel view of a session.
func (s *PathmapServer) handlePanel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctl := s.selectionSession(ctx, req)
	v := ctl.View()
	return marshalResult(panelResult{SessionID: ctl.SessionID(), Title: v.Title(), View: v})
}

// handleRender renders the diagram in the requested format.
func (s *PathmapServer) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	format, err := diagram.ParseFormat(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	l := s.app.Snapshot().Layout
	selected := req.GetString("selected", "")
	if selected != "" && !l.Has(selected) {
		return mcp.NewToolResultError(fmt.Sprintf("node %q is not in the layout", selected)), nil
	}

	out, err := diagram.Render(ctx, l, format, diagram.Options{Selected: selected})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
	}
	if format.Binary() {
		return mcp.NewToolResultImage("pathmap diagram", base64.StdEncoding.EncodeToString(out), format.ContentType()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// handleQuery reads datasets, events, stats, or sessions.
func (s *PathmapServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "sessions":
		return s.querySessions()
	case "stats":
		return s.queryStats(ctx, filter)
	case "datasets", "events":
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource: %s", resource)), nil
	}

	st := s.app.Store()
	if st == nil {
		return mcp.NewToolResultError("store is not configured"), nil
	}

	if resource == "datasets" {
		recs, err := st.ListDatasets(ctx, store.DatasetFilter{
			Name:  extractString(filter, "name"),
			Limit: extractInt(filter, "limit", 20),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		// Documents are large; callers fetch a dataset through pathmap.layout.
		for _, r := range recs {
			r.Document = nil
		}
		return marshalResult(nonNil(recs))
	}

	sessionID := extractString(filter, "session_id")
	eventType := extractString(filter, "event_type")
	if sessionID != "" && eventType == "" {
		events, err := st.GetEvents(ctx, sessionID, int64(extractInt(filter, "since_sequence", 0)))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return marshalResult(nonNil(events))
	}

	ef := store.EventFilter{
		SessionID: sessionID,
		NodeID:    extractString(filter, "node_id"),
		Limit:     extractInt(filter, "limit", 50),
	}
	if since := extractString(filter, "since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since %q: want RFC3339", since)), nil
		}
		ef.Since = &t
	}
	events, err := st.GetEventsByType(ctx, eventType, ef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(nonNil(events))
}

// handleReload re-reads the dataset source.
func (s *PathmapServer) handleReload(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changed, err := s.app.Reload(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reload failed: %v", err)), nil
	}
	snap := s.app.Snapshot()
	return marshalResult(map[string]any{
		"changed":  changed,
		"version":  snap.Version,
		"checksum": snap.Checksum,
		"nodes":    len(snap.Layout.Nodes),
		"edges":    len(snap.Layout.Edges),
	})
}

func (s *PathmapServer) querySessions() (*mcp.CallToolResult, error) {
	type sessionInfo struct {
		SessionID string `json:"session_id"`
		Selected  string `json:"selected,omitempty"`
	}
	sessions := s.app.Sessions()
	out := make([]sessionInfo, 0, sessions.Len())
	for _, id := range sessions.IDs() {
		ctl, err := sessions.Get(id)
		if err != nil {
			continue // removed concurrently
		}
		out = append(out, sessionInfo{SessionID: id, Selected: ctl.State().NodeID})
	}
	return marshalResult(out)
}

func (s *PathmapServer) queryStats(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	snap := s.app.Snapshot()
	resp := map[string]any{
		"sessions": s.app.Sessions().Len(),
		"nodes":    len(snap.Layout.Nodes),
		"edges":    len(snap.Layout.Edges),
		"details":  snap.Details.Len(),
		"version":  snap.Version,
	}
	if st := s.app.Store(); st != nil {
		top, err := store.NewEventLog(st).TopNodes(ctx, extractInt(filter, "limit", 5))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		resp["top_nodes"] = top
	}
	return marshalResult(resp)
}

// selectionSession resolves the selection session a call acts on. An
// explicit session_id wins; otherwise every MCP connection gets its own.
// The session is mapped to the calling client so changes made elsewhere
// (the web panel, a reload) are pushed back to it.
func (s *PathmapServer) selectionSession(ctx context.Context, req mcp.CallToolRequest) *selection.Controller {
	var clientID string
	if session := server.ClientSessionFromContext(ctx); session != nil {
		clientID = session.SessionID()
	}

	id := req.GetString("session_id", "")
	switch {
	case id != "":
	case clientID != "":
		id = clientSelectionID(clientID)
	default:
		id = defaultSelection
	}

	ctl := s.app.Sessions().GetOrCreate(id)
	if clientID != "" {
		s.sessions.Register(id, clientID)
	}
	return ctl
}

// clientSelectionID is the default selection session of an MCP client.
func clientSelectionID(clientID string) string { return "mcp-" + clientID }

func newPanelResult(ctl *selection.Controller, t selection.Transition) panelResult {
	v := ctl.View()
	return panelResult{
		SessionID: ctl.SessionID(),
		Event:     t.EventType(),
		Changed:   t.Changed(),
		Title:     v.Title(),
		View:      v,
	}
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func extractString(filter map[string]any, key string) string {
	if filter == nil {
		return ""
	}
	s, _ := filter[key].(string)
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
