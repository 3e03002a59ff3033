package panel

import (
	"html/template"
	"net/http"

	"github.com/rendis/pathmap/internal/app"
	"github.com/rendis/pathmap/internal/diagram"
	"github.com/rendis/pathmap/internal/layout"
	"github.com/rendis/pathmap/internal/selection"
	"github.com/rendis/pathmap/internal/store"
	"github.com/rendis/pathmap/pkg/schema"
)

// --- Page data types ---

type pageData struct {
	Title  string
	Active string
}

type indexData struct {
	pageData
	SessionID string
	Snapshot  *app.Snapshot
	Legend    []layout.LegendItem
	Diagram   template.HTML
	View      selection.PanelView
	Formats   []diagram.Format
}

type datasetsData struct {
	pageData
	Current  *app.Snapshot
	Datasets []*store.DatasetRecord
	Stored   bool
}

type eventsData struct {
	pageData
	Events    []*store.Event
	EventType string
	SessionID string
	Stored    bool
}

// --- Page handlers ---

func (s *PanelServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctl := s.browserSession(w, r)
	snap := s.deps.App.Snapshot()
	view := ctl.View()

	svg := diagram.RenderSVG(snap.Layout, diagram.SVGOptions{Selected: view.NodeID})

	s.renderPage(w, "index.html", indexData{
		pageData:  pageData{Title: snap.Layout.Title, Active: "map"},
		SessionID: ctl.SessionID(),
		Snapshot:  snap,
		Legend:    snap.Layout.Legend,
		// RenderSVG escapes every dataset string it emits.
		Diagram: template.HTML(svg),
		View:    view,
		Formats: diagram.Formats,
	})
}

func (s *PanelServer) handleDatasets(w http.ResponseWriter, r *http.Request) {
	data := datasetsData{
		pageData: pageData{Title: "Datasets", Active: "datasets"},
		Current:  s.deps.App.Snapshot(),
	}
	if st := s.deps.App.Store(); st != nil {
		data.Stored = true
		recs, err := st.ListDatasets(r.Context(), store.DatasetFilter{
			Name:  r.URL.Query().Get("name"),
			Limit: queryInt(r, "limit", 50),
		})
		if err != nil {
			s.deps.Logger.Error("list datasets failed", "error", err)
		}
		data.Datasets = recs
	}
	s.renderPage(w, "datasets.html", data)
}

func (s *PanelServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventType := r.URL.Query().Get("type")
	sessionID := r.URL.Query().Get("session_id")

	data := eventsData{
		pageData:  pageData{Title: "Events", Active: "events"},
		EventType: eventType,
		SessionID: sessionID,
	}
	if st := s.deps.App.Store(); st != nil {
		data.Stored = true
		events, err := st.GetEventsByType(r.Context(), eventType, store.EventFilter{
			SessionID: sessionID,
			Limit:     queryInt(r, "limit", 100),
		})
		if err != nil {
			s.deps.Logger.Error("list events failed", "error", err)
		}
		data.Events = events
	}
	s.renderPage(w, "events.html", data)
}

// handlePanelPartial renders only the detail panel of a session, for the
// page script to swap in after a transition.
func (s *PanelServer) handlePanelPartial(w http.ResponseWriter, r *http.Request) {
	ctl, err := s.deps.App.Sessions().Get(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.panel.ExecuteTemplate(w, "panel", ctl.View()); err != nil {
		s.deps.Logger.Error("panel render error", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *PanelServer) handleDiagram(w http.ResponseWriter, r *http.Request) {
	format, err := diagram.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeErr(w, err)
		return
	}
	l := s.deps.App.Snapshot().Layout
	selected := r.URL.Query().Get("selected")
	if selected != "" && !l.Has(selected) {
		writeErr(w, schema.NewErrorf(schema.ErrCodeNotFound, "node %q is not in the layout", selected).WithNode(selected))
		return
	}

	callback := r.URL.Query().Get("callback")
	if err := diagram.ValidateCallback(callback); err != nil {
		writeErr(w, err)
		return
	}

	out, err := diagram.Render(r.Context(), l, format, diagram.Options{
		Selected:      selected,
		ClickCallback: callback,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// browserSession resolves the session named by the cookie, creating a new
// one when the cookie is missing or names a session this process does not
// know.
func (s *PanelServer) browserSession(w http.ResponseWriter, r *http.Request) *selection.Controller {
	sessions := s.deps.App.Sessions()
	if c, err := r.Cookie(sessionCookie); err == nil {
		if ctl, err := sessions.Get(c.Value); err == nil {
			return ctl
		}
	}
	ctl := sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    ctl.SessionID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ctl
}
