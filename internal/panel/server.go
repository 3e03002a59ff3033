package panel

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/pathmap/internal/app"
	"github.com/rendis/pathmap/internal/reload"
)

//go:embed templates static
var content embed.FS

// sessionCookie carries the browser's selection session id.
const sessionCookie = "pathmap_session"

// PanelDeps holds the dependencies for the panel server.
type PanelDeps struct {
	App *app.App
	// Reloader is optional; without it the reload endpoints report 404.
	Reloader *reload.Reloader
	Logger   *slog.Logger
}

// PanelServer serves the interactive pathway page and its JSON API.
type PanelServer struct {
	deps  PanelDeps
	pages map[string]*template.Template
	panel *template.Template
}

// NewPanelServer creates a new PanelServer with parsed templates.
func NewPanelServer(deps PanelDeps) *PanelServer {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	funcMap := template.FuncMap{
		"json":       toJSON,
		"timeAgo":    timeAgo,
		"add":        add,
		"truncate":   truncate,
		"eventBadge": eventBadge,
	}

	// Shared templates: base layout + partials.
	base := template.Must(
		template.New("").Funcs(funcMap).ParseFS(content,
			"templates/base.html",
			"templates/partials/*.html",
		),
	)

	// Each page clones the shared set so its {{define "content"}} stays local.
	pageFiles := []string{
		"index.html",
		"datasets.html",
		"events.html",
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, pf := range pageFiles {
		clone := template.Must(base.Clone())
		pages[pf] = template.Must(clone.ParseFS(content, "templates/"+pf))
	}

	return &PanelServer{
		deps:  deps,
		pages: pages,
		panel: base,
	}
}

// Handler returns the HTTP handler for the panel routes.
func (s *PanelServer) Handler() http.Handler {
	mux := http.NewServeMux()

	staticFS, _ := fs.Sub(content, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Pages.
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /datasets", s.handleDatasets)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /partials/panel/{id}", s.handlePanelPartial)

	// Diagram exports.
	mux.HandleFunc("GET /diagram/{format}", s.handleDiagram)

	// SSE streams.
	mux.HandleFunc("GET /sse/events", s.handleSSEGlobal)
	mux.HandleFunc("GET /sse/sessions/{id}", s.handleSSESession)

	// API.
	mux.HandleFunc("GET /api/layout", s.handleLayout)
	mux.HandleFunc("GET /api/nodes", s.handleNodes)
	mux.HandleFunc("GET /api/nodes/{id}", s.handleNode)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionView)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/click/{node}", s.handleClick)
	mux.HandleFunc("POST /api/sessions/{id}/close", s.handleClose)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleSessionEvents)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/reload", s.handleReloadStatus)
	mux.HandleFunc("POST /api/reload", s.handleReload)

	return mux
}

// renderPage executes a page template by name.
func (s *PanelServer) renderPage(w http.ResponseWriter, page string, data any) {
	tmpl, ok := s.pages[page]
	if !ok {
		s.deps.Logger.Error("template not found", "page", page)
		http.Error(w, fmt.Sprintf("template %q not found", page), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.deps.Logger.Error("template render error", "page", page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
