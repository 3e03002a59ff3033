// Package selection holds the detail-panel state machine: which node, if any,
// is currently selected, and the transitions driven by clicks and close requests.
package selection

import "github.com/rendis/pathmap/pkg/schema"

// State is the selection of one session. The zero value is None.
type State struct {
	NodeID string `json:"node_id,omitempty"`
}

// None is the state with no node selected and the panel closed.
var None = State{}

// Selected returns the state with id selected.
func Selected(id string) State { return State{NodeID: id} }

// IsSelected reports whether a node is selected.
func (s State) IsSelected() bool { return s.NodeID != "" }

// Event is an input to the state machine.
type Event interface {
	eventName() string
}

// NodeClicked is raised when the user activates a node.
type NodeClicked struct {
	ID string `json:"id"`
}

// CloseRequested is raised by the close button, the overlay, or the Escape key.
type CloseRequested struct {
	Source schema.CloseSource `json:"source"`
}

func (NodeClicked) eventName() string    { return "node_clicked" }
func (CloseRequested) eventName() string { return "close_requested" }

// Reduce computes the next state. It is total and has no side effects:
// a click always selects its node (replacing any previous selection) and a
// close always yields None.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case NodeClicked:
		return Selected(e.ID)
	case CloseRequested:
		return None
	default:
		return s
	}
}

// Transition records one Dispatch.
type Transition struct {
	SessionID string
	From      State
	To        State
	Event     Event
}

// Changed reports whether the state moved.
func (t Transition) Changed() bool { return t.From != t.To }

// EventType returns the log event type for the transition, or "" when the
// state did not change.
func (t Transition) EventType() string {
	switch {
	case !t.Changed():
		return ""
	case !t.From.IsSelected():
		return schema.EventSelectionOpened
	case !t.To.IsSelected():
		return schema.EventSelectionClosed
	default:
		return schema.EventSelectionChanged
	}
}
