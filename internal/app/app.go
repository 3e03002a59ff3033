// Package app holds the live graph, layout and detail table of a running
// pathmap process and swaps them atomically when the dataset is reloaded.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rendis/pathmap/internal/content"
	"github.com/rendis/pathmap/internal/dataset"
	"github.com/rendis/pathmap/internal/expressions"
	"github.com/rendis/pathmap/internal/graph"
	"github.com/rendis/pathmap/internal/layout"
	"github.com/rendis/pathmap/internal/logging"
	"github.com/rendis/pathmap/internal/selection"
	"github.com/rendis/pathmap/internal/store"
	"github.com/rendis/pathmap/internal/streaming"
	"github.com/rendis/pathmap/internal/validation"
	"github.com/rendis/pathmap/pkg/schema"
)

// Snapshot is one immutable generation of the loaded dataset.
type Snapshot struct {
	Source   string
	Version  int
	Checksum string
	LoadedAt time.Time
	Dataset  *schema.Dataset
	Graph    *graph.Graph
	Layout   *layout.Layout
	Details  *content.Table
	Warnings []schema.ValidationIssue
}

// Options configure New.
type Options struct {
	// Source is a dataset file path; empty selects the bundled dataset.
	Source string
	// Store persists dataset versions and the interaction log. Optional.
	Store store.Store
	// Hub receives selection and dataset events. Optional.
	Hub    streaming.EventHub
	Styles *layout.StyleTable
	Logger *slog.Logger
}

// App is the process-wide runtime shared by the panel, the MCP server and
// the reloader.
type App struct {
	// installMu serializes Load, Reload and Install from validation through
	// the session reset, so sessions and Snapshot never disagree on the layout.
	installMu sync.Mutex

	mu       sync.RWMutex
	current  *Snapshot
	source   string
	store    store.Store
	hub      streaming.EventHub
	styles   layout.StyleTable
	logger   *slog.Logger
	sessions *selection.Sessions
	querier  *expressions.Querier
	validate *validation.DatasetValidator
}

// New loads the initial dataset and returns a ready App.
func New(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	styles := layout.DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}
	v, err := validation.NewDatasetValidator()
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}
	q, err := expressions.NewQuerier()
	if err != nil {
		return nil, fmt.Errorf("create querier: %w", err)
	}

	a := &App{
		source:   opts.Source,
		store:    opts.Store,
		hub:      opts.Hub,
		styles:   styles,
		logger:   logger,
		querier:  q,
		validate: v,
	}

	deps := selection.Deps{Hub: opts.Hub, Logger: logger}
	if opts.Store != nil {
		deps.Appender = opts.Store
	}
	a.sessions = selection.NewSessions(deps)

	if _, err := a.Load(ctx, opts.Source); err != nil {
		return nil, err
	}
	return a, nil
}

// Snapshot returns the current generation.
func (a *App) Snapshot() *Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Source returns the dataset source the App reloads from.
func (a *App) Source() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.source
}

// Sessions returns the selection session registry.
func (a *App) Sessions() *selection.Sessions { return a.sessions }

// SweepSessions drops selection sessions idle for longer than maxIdle, every
// interval, until ctx is done.
func (a *App) SweepSessions(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := a.sessions.EvictIdle(maxIdle); len(evicted) > 0 {
				a.logger.Debug("idle sessions evicted", slog.Int("count", len(evicted)))
			}
		}
	}
}

// Querier returns the node predicate and layout query engines.
func (a *App) Querier() *expressions.Querier { return a.querier }

// Hub returns the event hub, which may be nil.
func (a *App) Hub() streaming.EventHub { return a.hub }

// Store returns the persistence layer, which may be nil.
func (a *App) Store() store.Store { return a.store }

// Validator returns the dataset validator.
func (a *App) Validator() *validation.DatasetValidator { return a.validate }

// Load reads source, validates it, and installs it as the current generation.
// On failure the previous generation stays live.
func (a *App) Load(ctx context.Context, source string) (*Snapshot, error) {
	a.installMu.Lock()
	defer a.installMu.Unlock()

	ctx = logging.WithDataset(ctx, displayName(source))
	ds, _, err := dataset.Source(source)
	if err != nil {
		a.reject(ctx, source, err)
		return nil, err
	}
	return a.install(ctx, source, ds)
}

// Reload re-reads the configured source and installs it when its content
// changed. It reports whether a new generation was installed.
func (a *App) Reload(ctx context.Context) (bool, error) {
	a.installMu.Lock()
	defer a.installMu.Unlock()

	source := a.Source()
	ctx = logging.WithDataset(ctx, displayName(source))

	ds, _, err := dataset.Source(source)
	if err != nil {
		a.reject(ctx, source, err)
		return false, err
	}
	doc, err := json.Marshal(ds)
	if err != nil {
		return false, fmt.Errorf("marshal dataset: %w", err)
	}
	if cur := a.Snapshot(); cur != nil && cur.Checksum == store.Checksum(doc) {
		a.logger.DebugContext(ctx, "dataset unchanged")
		return false, nil
	}
	if _, err := a.install(ctx, source, ds); err != nil {
		return false, err
	}
	return true, nil
}

// Install validates ds, builds its graph and layout, persists it when a
// store is configured, and swaps it in. Every session is reset onto the new
// layout.
func (a *App) Install(ctx context.Context, source string, ds *schema.Dataset) (*Snapshot, error) {
	a.installMu.Lock()
	defer a.installMu.Unlock()
	return a.install(ctx, source, ds)
}

func (a *App) install(ctx context.Context, source string, ds *schema.Dataset) (*Snapshot, error) {
	result := a.validate.Validate(ds)
	if err := result.ToError(); err != nil {
		a.reject(ctx, source, err)
		return nil, err
	}

	g, err := graph.FromDataset(ds)
	if err != nil {
		a.reject(ctx, source, err)
		return nil, err
	}
	details := content.FromDataset(ds)
	l := layout.Compile(g, layout.PositionsFromDataset(ds), a.styles, layout.Options{
		Title:   ds.Title,
		Details: details,
	})

	doc, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("marshal dataset: %w", err)
	}
	snap := &Snapshot{
		Source:   source,
		Checksum: store.Checksum(doc),
		LoadedAt: time.Now().UTC(),
		Dataset:  ds,
		Graph:    g,
		Layout:   l,
		Details:  details,
		Warnings: result.Warnings,
	}

	if a.store != nil {
		version, err := a.persist(ctx, source, ds, doc, snap.Checksum)
		if err != nil {
			return nil, err
		}
		snap.Version = version
	}

	a.mu.Lock()
	prev := a.current
	a.current = snap
	a.source = source
	a.mu.Unlock()

	a.sessions.Reset(ctx, l, details)

	eventType := schema.EventDatasetLoaded
	if prev != nil {
		eventType = schema.EventDatasetReloaded
	}
	for _, w := range result.Warnings {
		a.logger.WarnContext(ctx, "dataset warning",
			slog.String("path", w.Path), slog.String("code", w.Code), slog.String("message", w.Message))
	}
	a.logger.InfoContext(ctx, "dataset installed",
		slog.Int("nodes", g.Len()), slog.Int("edges", len(l.Edges)), slog.Int("version", snap.Version))
	a.publish(ctx, eventType, map[string]any{
		"source":   displayName(source),
		"version":  snap.Version,
		"checksum": snap.Checksum,
		"nodes":    g.Len(),
		"edges":    len(l.Edges),
	})
	return snap, nil
}

// persist stores ds as the next version of its source name, unless the
// latest stored version already has the same checksum.
func (a *App) persist(ctx context.Context, source string, ds *schema.Dataset, doc []byte, checksum string) (int, error) {
	name := displayName(source)
	latest, err := a.store.GetDataset(ctx, name, 0)
	switch {
	case err == nil && latest.Checksum == checksum:
		a.logger.DebugContext(ctx, "dataset already stored", slog.Int("version", latest.Version))
		return latest.Version, nil
	case err != nil && !schema.HasCode(err, schema.ErrCodeNotFound):
		return 0, schema.NewErrorf(schema.ErrCodeStore, "read latest dataset: %s", err.Error()).WithCause(err)
	}

	rec := &store.DatasetRecord{
		Name:      name,
		Title:     ds.Title,
		Document:  doc,
		NodeCount: len(ds.Nodes),
		EdgeCount: len(ds.Edges),
	}
	if err := a.store.SaveDataset(ctx, rec); err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeStore, "save dataset: %s", err.Error()).WithCause(err)
	}
	return rec.Version, nil
}

func (a *App) reject(ctx context.Context, source string, err error) {
	a.logger.ErrorContext(ctx, "dataset rejected", slog.String("error", err.Error()))
	a.publish(ctx, schema.EventDatasetRejected, map[string]any{
		"source": displayName(source),
		"error":  err.Error(),
	})
}

func (a *App) publish(ctx context.Context, eventType string, payload map[string]any) {
	if a.hub == nil {
		return
	}
	if err := a.hub.Publish(ctx, streaming.StreamEvent{EventType: eventType, Payload: payload}); err != nil {
		a.logger.WarnContext(ctx, "publish dataset event", slog.String("error", err.Error()))
	}
}

func displayName(source string) string {
	if source == "" {
		return dataset.BundledName
	}
	return source
}
