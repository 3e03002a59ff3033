package selection

import (
	"github.com/rendis/pathmap/internal/content"
	"github.com/rendis/pathmap/internal/layout"
)

// PanelView is what the detail panel shows for a state.
// Detail is nil when the node has no detail record; the panel then shows
// only the node label.
type PanelView struct {
	Open    bool                  `json:"open"`
	Overlay bool                  `json:"overlay"`
	NodeID  string                `json:"node_id,omitempty"`
	Node    *layout.RenderNode    `json:"node,omitempty"`
	Detail  *content.DetailRecord `json:"detail,omitempty"`
}

// Title is the panel heading: the detail title when present, else the node label.
func (v PanelView) Title() string {
	if v.Detail != nil && v.Detail.Title != "" {
		return v.Detail.Title
	}
	if v.Node != nil {
		return v.Node.Label
	}
	return ""
}

// BuildView projects a state onto the layout and detail table.
func BuildView(s State, l *layout.Layout, details content.Lookup) PanelView {
	if !s.IsSelected() {
		return PanelView{}
	}
	v := PanelView{Open: true, Overlay: true, NodeID: s.NodeID}
	if l != nil {
		if n, ok := l.Node(s.NodeID); ok {
			v.Node = &n
		}
	}
	if details != nil {
		if d, ok := details.Detail(s.NodeID); ok {
			v.Detail = &d
		}
	}
	return v
}
