package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rendis/pathmap/internal/expressions"
	"github.com/rendis/pathmap/internal/reload"
	"github.com/rendis/pathmap/internal/selection"
	"github.com/rendis/pathmap/internal/store"
	"github.com/rendis/pathmap/pkg/schema"
)

type sessionResponse struct {
	SessionID string              `json:"session_id"`
	State     string              `json:"state"`
	View      selection.PanelView `json:"view"`
}

type transitionResponse struct {
	sessionResponse
	Event   string `json:"event,omitempty"`
	Changed bool   `json:"changed"`
}

func newSessionResponse(ctl *selection.Controller) sessionResponse {
	v := ctl.View()
	state := "none"
	if v.Open {
		state = "selected"
	}
	return sessionResponse{SessionID: ctl.SessionID(), State: state, View: v}
}

// handleLayout returns the compiled layout, or the result of a jq query
// over it when ?jq= is given.
func (s *PanelServer) handleLayout(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.App.Snapshot()
	jq := r.URL.Query().Get("jq")
	if jq == "" {
		writeJSON(w, http.StatusOK, snap.Layout)
		return
	}
	out, err := s.deps.App.Querier().QueryLayout(r.Context(), jq, snap.Layout)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleNodes lists render nodes, filtered by a CEL or Expr predicate.
func (s *PanelServer) handleNodes(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.App.Snapshot()
	where := r.URL.Query().Get("where")
	if where == "" {
		writeJSON(w, http.StatusOK, snap.Layout.Nodes)
		return
	}
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = expressions.LangCEL
	}
	nodes, err := s.deps.App.Querier().FilterNodes(r.Context(), lang, where, snap.Layout, snap.Details)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// handleNode returns one render node with its detail record.
func (s *PanelServer) handleNode(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.App.Snapshot()
	id := r.PathValue("id")
	n, ok := snap.Layout.Node(id)
	if !ok {
		writeErr(w, schema.NewErrorf(schema.ErrCodeNotFound, "node %q is not in the layout", id).WithNode(id))
		return
	}
	resp := map[string]any{"node": n}
	if d, ok := snap.Details.Detail(id); ok {
		resp["detail"] = d
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *PanelServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctl := s.deps.App.Sessions().Create()
	writeJSON(w, http.StatusCreated, newSessionResponse(ctl))
}

func (s *PanelServer) handleSessionView(w http.ResponseWriter, r *http.Request) {
	ctl, err := s.deps.App.Sessions().Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(ctl))
}

func (s *PanelServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.deps.App.Sessions().Get(id); err != nil {
		writeErr(w, err)
		return
	}
	s.deps.App.Sessions().Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleClick selects a node in a session.
func (s *PanelServer) handleClick(w http.ResponseWriter, r *http.Request) {
	ctl, err := s.deps.App.Sessions().Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	t, err := ctl.ClickNode(r.Context(), r.PathValue("node"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{
		sessionResponse: newSessionResponse(ctl),
		Event:           t.EventType(),
		Changed:         t.Changed(),
	})
}

// handleClose closes the panel of a session. The source is taken from a
// JSON body {"source": "..."} or the ?source= query, defaulting to api.
func (s *PanelServer) handleClose(w http.ResponseWriter, r *http.Request) {
	ctl, err := s.deps.App.Sessions().Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	source := r.URL.Query().Get("source")
	if r.ContentLength > 0 {
		var body struct {
			Source string `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
		if body.Source != "" {
			source = body.Source
		}
	}
	cs, err := parseCloseSource(source)
	if err != nil {
		writeErr(w, err)
		return
	}

	t, err := ctl.RequestClose(r.Context(), cs)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{
		sessionResponse: newSessionResponse(ctl),
		Event:           t.EventType(),
		Changed:         t.Changed(),
	})
}

// handleSessionEvents returns the persisted interaction log of a session.
func (s *PanelServer) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	st := s.deps.App.Store()
	if st == nil {
		writeError(w, http.StatusNotFound, "event log is not configured")
		return
	}
	events, err := st.GetEvents(r.Context(), r.PathValue("id"), int64(queryInt(r, "since", 0)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get events: %v", err))
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleStats reports the live session count and the most viewed nodes.
func (s *PanelServer) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.App.Snapshot()
	resp := map[string]any{
		"sessions": s.deps.App.Sessions().Len(),
		"nodes":    len(snap.Layout.Nodes),
		"edges":    len(snap.Layout.Edges),
		"details":  snap.Details.Len(),
		"version":  snap.Version,
		"checksum": snap.Checksum,
	}
	if st := s.deps.App.Store(); st != nil {
		top, err := store.NewEventLog(st).TopNodes(r.Context(), queryInt(r, "top", 5))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("top nodes: %v", err))
			return
		}
		resp["top_nodes"] = top
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *PanelServer) handleReloadStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reloader == nil {
		writeError(w, http.StatusNotFound, "reload schedule is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Reloader.Status())
}

// handleReload re-reads the dataset source immediately.
func (s *PanelServer) handleReload(w http.ResponseWriter, r *http.Request) {
	var (
		changed bool
		err     error
	)
	if s.deps.Reloader != nil {
		changed, err = s.deps.Reloader.RunOnce(r.Context())
	} else {
		changed, err = s.deps.App.Reload(r.Context())
	}
	if errors.Is(err, reload.ErrInProgress) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"skipped": true,
			"error":   err.Error(),
		})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	snap := s.deps.App.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"changed":  changed,
		"version":  snap.Version,
		"checksum": snap.Checksum,
	})
}

func parseCloseSource(v string) (schema.CloseSource, error) {
	switch cs := schema.CloseSource(strings.ToLower(strings.TrimSpace(v))); cs {
	case "":
		return schema.CloseSourceAPI, nil
	case schema.CloseSourceButton, schema.CloseSourceOverlay, schema.CloseSourceKeyboard, schema.CloseSourceAPI:
		return cs, nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown close source %q", v)
	}
}
