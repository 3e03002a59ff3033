package selection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/pathmap/internal/content"
	"github.com/rendis/pathmap/internal/layout"
	"github.com/rendis/pathmap/pkg/schema"
)

// Sessions is the process-local registry of per-client controllers.
// Selections are never persisted across process restarts. Every lookup
// marks the session as used; EvictIdle drops the ones left alone too long.
type Sessions struct {
	mu       sync.RWMutex
	deps     Deps
	sessions map[string]*Controller
	lastUsed map[string]time.Time
	hooks    []TransitionHook
	now      func() time.Time
}

// NewSessions creates an empty registry. deps.Layout and deps.Details are the
// tables handed to every new controller until Reset replaces them.
func NewSessions(deps Deps) *Sessions {
	return &Sessions{
		deps:     deps,
		sessions: make(map[string]*Controller),
		lastUsed: make(map[string]time.Time),
		now:      time.Now,
	}
}

// OnChange registers a hook attached to every current and future controller.
func (s *Sessions) OnChange(hook TransitionHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
	for _, c := range s.sessions {
		c.OnChange(hook)
	}
}

// Create starts a new session with a random id.
func (s *Sessions) Create() *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(uuid.New().String())
}

// Get returns the controller for id.
func (s *Sessions) Get(id string) (*Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "session %q not found", id)
	}
	s.lastUsed[id] = s.now()
	return c, nil
}

// GetOrCreate returns the controller for id, creating it when absent.
// Callers that own a stable identity (an MCP connection, a CLI run) use it
// instead of Create.
func (s *Sessions) GetOrCreate(id string) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.sessions[id]; ok {
		s.lastUsed[id] = s.now()
		return c
	}
	return s.createLocked(id)
}

// Remove drops a session. Unknown ids are ignored.
func (s *Sessions) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.lastUsed, id)
}

// EvictIdle removes every session not looked up for longer than maxIdle and
// returns the removed ids, sorted.
func (s *Sessions) EvictIdle(maxIdle time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	var evicted []string
	for id, used := range s.lastUsed {
		if used.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.lastUsed, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// IDs returns the active session ids, sorted.
func (s *Sessions) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of active sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reset installs a new layout and detail table for every session and for
// sessions created later. Selections of nodes that disappeared are cleared.
func (s *Sessions) Reset(ctx context.Context, l *layout.Layout, details content.Lookup) {
	s.mu.Lock()
	s.deps.Layout = l
	s.deps.Details = details
	controllers := make([]*Controller, 0, len(s.sessions))
	for _, c := range s.sessions {
		controllers = append(controllers, c)
	}
	s.mu.Unlock()

	for _, c := range controllers {
		c.Reset(ctx, l, details)
	}
}

func (s *Sessions) createLocked(id string) *Controller {
	c := NewController(id, s.deps)
	c.after = append(c.after, s.hooks...)
	s.sessions[id] = c
	s.lastUsed[id] = s.now()
	return c
}
