// Package layout compiles a graph.Graph plus its position and style tables
// into the render-ready structure consumed by every rendering surface.
package layout

import "github.com/rendis/pathmap/internal/graph"

// Anchor is the side of a node box a connector attaches to.
type Anchor string

const (
	AnchorLeft   Anchor = "left"
	AnchorRight  Anchor = "right"
	AnchorTop    Anchor = "top"
	AnchorBottom Anchor = "bottom"
)

// Position is a coordinate in layout space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FallbackPosition is assigned to nodes missing from the position table.
var FallbackPosition = Position{X: 0, Y: 0}

// Layout is the render-ready projection of a graph. It is never mutated
// after Compile returns.
type Layout struct {
	Title    string       `json:"title,omitempty"`
	Nodes    []RenderNode `json:"nodes"`
	Edges    []RenderEdge `json:"edges"`
	Columns  [][]string   `json:"columns"`
	Legend   []LegendItem `json:"legend"`
	Viewport Viewport     `json:"viewport"`

	index map[string]int
}

// RenderNode is a node with its resolved position, style and anchors.
type RenderNode struct {
	ID           string         `json:"id"`
	Label        string         `json:"label"`
	Category     graph.Category `json:"category"`
	Position     Position       `json:"position"`
	Style        Style          `json:"style"`
	SourceAnchor Anchor         `json:"source_anchor"`
	TargetAnchor Anchor         `json:"target_anchor"`
	HasDetail    bool           `json:"has_detail"`
	Positioned   bool           `json:"positioned"` // false when the fallback coordinate was used
}

// RenderEdge is a connector between two resolved nodes.
type RenderEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceAnchor Anchor `json:"source_anchor"`
	TargetAnchor Anchor `json:"target_anchor"`
	Connector    string `json:"connector"`
	Marker       string `json:"marker"`
	StrokeWidth  int    `json:"stroke_width"`
}

// LegendItem describes one category for the header legend.
type LegendItem struct {
	Category graph.Category `json:"category"`
	Name     string         `json:"name"`
	Color    string         `json:"color"`
}

// Viewport carries the client-side fit and zoom hints.
type Viewport struct {
	FitPadding float64 `json:"fit_padding"`
	MinZoom    float64 `json:"min_zoom"`
	MaxZoom    float64 `json:"max_zoom"`
}

// Rect is an axis-aligned bounding box in layout space.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Node returns the render node with the given ID.
func (l *Layout) Node(id string) (RenderNode, bool) {
	i, ok := l.index[id]
	if !ok {
		return RenderNode{}, false
	}
	return l.Nodes[i], true
}

// Has reports whether the layout contains a node with the given ID.
func (l *Layout) Has(id string) bool {
	_, ok := l.index[id]
	return ok
}

// Bounds returns the box spanning every node's position, with room for the
// node boxes themselves to the right and below each anchor point.
func (l *Layout) Bounds() Rect {
	if len(l.Nodes) == 0 {
		return Rect{}
	}
	r := Rect{MinX: l.Nodes[0].Position.X, MinY: l.Nodes[0].Position.Y, MaxX: l.Nodes[0].Position.X, MaxY: l.Nodes[0].Position.Y}
	for _, n := range l.Nodes {
		r.MinX = min(r.MinX, n.Position.X)
		r.MinY = min(r.MinY, n.Position.Y)
		r.MaxX = max(r.MaxX, n.Position.X+float64(n.Style.MinWidth))
		r.MaxY = max(r.MaxY, n.Position.Y+NodeHeight)
	}
	return r
}
