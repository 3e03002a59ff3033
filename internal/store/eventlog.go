package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rendis/pathmap/pkg/schema"
)

// SelectionPayload is the payload recorded with selection events.
type SelectionPayload struct {
	From   string             `json:"from,omitempty"`
	To     string             `json:"to,omitempty"`
	Source schema.CloseSource `json:"source,omitempty"`
}

// NodeViews counts how often a node's detail panel was opened.
type NodeViews struct {
	NodeID string `json:"node_id"`
	Views  int    `json:"views"`
}

// EventLog provides replay and aggregation on top of a Store's event table.
type EventLog struct {
	store Store
}

// NewEventLog wraps a Store.
func NewEventLog(s Store) *EventLog {
	return &EventLog{store: s}
}

// AppendEvent forwards to the underlying store.
func (el *EventLog) AppendEvent(ctx context.Context, event *Event) error {
	return el.store.AppendEvent(ctx, event)
}

// ReplaySelection rebuilds the last selected node id for a session from its
// events. An empty id means the panel was closed (or never opened).
// A gap in the sequence is reported as a store error.
func (el *EventLog) ReplaySelection(ctx context.Context, sessionID string) (string, error) {
	events, err := el.store.GetEvents(ctx, sessionID, 0)
	if err != nil {
		return "", fmt.Errorf("get events for replay: %w", err)
	}

	selected := ""
	for i, e := range events {
		if expected := int64(i + 1); e.Sequence != expected {
			return "", schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in session %s: expected %d, got %d", sessionID, expected, e.Sequence)
		}
		switch e.Type {
		case schema.EventSelectionOpened, schema.EventSelectionChanged:
			selected = e.NodeID
		case schema.EventSelectionClosed:
			selected = ""
		}
	}
	return selected, nil
}

// TopNodes returns nodes ordered by how many times their panel was opened
// (opened or changed into), most viewed first. limit <= 0 returns all.
func (el *EventLog) TopNodes(ctx context.Context, limit int) ([]NodeViews, error) {
	counts := make(map[string]int)
	for _, typ := range []string{schema.EventSelectionOpened, schema.EventSelectionChanged} {
		events, err := el.store.GetEventsByType(ctx, typ, EventFilter{})
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			if e.NodeID != "" {
				counts[e.NodeID]++
			}
		}
	}

	out := make([]NodeViews, 0, len(counts))
	for id, n := range counts {
		out = append(out, NodeViews{NodeID: id, Views: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].NodeID < out[j].NodeID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DecodeSelection extracts the selection payload of an event.
func DecodeSelection(e *Event) (SelectionPayload, error) {
	var p SelectionPayload
	if len(e.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("decode selection payload: %w", err)
	}
	return p, nil
}
