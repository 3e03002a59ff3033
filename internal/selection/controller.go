package selection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/rendis/pathmap/internal/content"
	"github.com/rendis/pathmap/internal/layout"
	"github.com/rendis/pathmap/internal/logging"
	"github.com/rendis/pathmap/internal/store"
	"github.com/rendis/pathmap/internal/streaming"
	"github.com/rendis/pathmap/pkg/schema"
)

// TransitionHook is called after every state change.
type TransitionHook func(ctx context.Context, t Transition)

// EventAppender is satisfied by the Store and EventLog.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *store.Event) error
}

// Deps are the collaborators of a Controller. Every field is optional.
type Deps struct {
	Layout   *layout.Layout
	Details  content.Lookup
	Appender EventAppender
	Hub      streaming.EventHub
	Logger   *slog.Logger
}

// Controller owns the selection state of one session. All transitions are
// serialized through Dispatch.
type Controller struct {
	mu        sync.Mutex
	sessionID string
	state     State
	layout    *layout.Layout
	details   content.Lookup
	appender  EventAppender
	hub       streaming.EventHub
	logger    *slog.Logger
	after     []TransitionHook
}

// NewController creates a controller in the None state.
func NewController(sessionID string, deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sessionID: sessionID,
		layout:    deps.Layout,
		details:   deps.Details,
		appender:  deps.Appender,
		hub:       deps.Hub,
		logger:    logger,
	}
}

// SessionID returns the session this controller belongs to.
func (c *Controller) SessionID() string { return c.sessionID }

// OnChange registers a hook called after each transition that changes state.
// Hooks run while the controller is locked and must not call back into it.
func (c *Controller) OnChange(hook TransitionHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.after = append(c.after, hook)
}

// Dispatch applies ev. A click on a node that is not in the layout is
// rejected with NOT_FOUND and leaves the state unchanged. A transition that
// does not change the state (closing an already closed panel, clicking the
// selected node again) emits nothing.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (Transition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx = logging.WithSessionID(ctx, c.sessionID)

	if click, ok := ev.(NodeClicked); ok && !c.known(click.ID) {
		return Transition{SessionID: c.sessionID, From: c.state, To: c.state, Event: ev},
			schema.NewErrorf(schema.ErrCodeNotFound, "node %q is not in the layout", click.ID).WithNode(click.ID)
	}

	t := Transition{SessionID: c.sessionID, From: c.state, To: Reduce(c.state, ev), Event: ev}
	if !t.Changed() {
		return t, nil
	}
	c.state = t.To

	c.emit(ctx, t)
	for _, hook := range c.after {
		hook(ctx, t)
	}
	return t, nil
}

// ClickNode dispatches NodeClicked{id}.
func (c *Controller) ClickNode(ctx context.Context, id string) (Transition, error) {
	return c.Dispatch(ctx, NodeClicked{ID: id})
}

// RequestClose dispatches CloseRequested{source}.
func (c *Controller) RequestClose(ctx context.Context, source schema.CloseSource) (Transition, error) {
	return c.Dispatch(ctx, CloseRequested{Source: source})
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns the panel projection of the current state.
func (c *Controller) View() PanelView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BuildView(c.state, c.layout, c.details)
}

// Reset swaps in a new layout and detail table. A selection pointing at a
// node the new layout no longer has is cleared and reported as a close.
func (c *Controller) Reset(ctx context.Context, l *layout.Layout, details content.Lookup) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.layout = l
	c.details = details
	if !c.state.IsSelected() || c.known(c.state.NodeID) {
		return
	}

	ctx = logging.WithSessionID(ctx, c.sessionID)
	t := Transition{SessionID: c.sessionID, From: c.state, To: None, Event: CloseRequested{Source: schema.CloseSourceAPI}}
	c.state = None
	c.logger.InfoContext(ctx, "selection cleared by reload",
		slog.String("stale_node", t.From.NodeID))
	c.emit(ctx, t)
	for _, hook := range c.after {
		hook(ctx, t)
	}
}

func (c *Controller) known(id string) bool {
	return c.layout != nil && c.layout.Has(id)
}

// emit records t in the event log and publishes it. Failures are logged and
// never roll back the transition.
func (c *Controller) emit(ctx context.Context, t Transition) {
	nodeID := t.To.NodeID
	if nodeID == "" {
		nodeID = t.From.NodeID
	}
	payload := store.SelectionPayload{From: t.From.NodeID, To: t.To.NodeID}
	if cr, ok := t.Event.(CloseRequested); ok {
		payload.Source = cr.Source
	}
	eventType := t.EventType()
	ctx = logging.WithNodeID(ctx, nodeID)

	c.logger.DebugContext(ctx, "selection transition", slog.String("event", eventType))

	if c.appender != nil {
		raw, err := json.Marshal(payload)
		if err == nil {
			err = c.appender.AppendEvent(ctx, &store.Event{
				SessionID: c.sessionID,
				NodeID:    nodeID,
				Type:      eventType,
				Payload:   raw,
			})
		}
		if err != nil {
			c.logger.WarnContext(ctx, "append selection event", slog.String("error", err.Error()))
		}
	}

	if c.hub != nil {
		if err := c.hub.Publish(ctx, streaming.StreamEvent{
			SessionID: c.sessionID,
			NodeID:    nodeID,
			EventType: eventType,
			Payload:   payload,
		}); err != nil {
			c.logger.WarnContext(ctx, "publish selection event", slog.String("error", err.Error()))
		}
	}
}
