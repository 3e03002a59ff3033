package layout

import (
	"fmt"

	"github.com/rendis/pathmap/internal/graph"
	"github.com/rendis/pathmap/pkg/schema"
)

// PositionTable maps node IDs to curated coordinates.
type PositionTable map[string]Position

// Resolve returns the position for id, or FallbackPosition if absent.
func (t PositionTable) Resolve(id string) (Position, bool) {
	if p, ok := t[id]; ok {
		return p, true
	}
	return FallbackPosition, false
}

// PositionsFromDataset converts the dataset position section.
func PositionsFromDataset(ds *schema.Dataset) PositionTable {
	if ds == nil {
		return PositionTable{}
	}
	t := make(PositionTable, len(ds.Positions))
	for id, c := range ds.Positions {
		t[id] = Position{X: c.X, Y: c.Y}
	}
	return t
}

// DetailIndex reports which nodes carry detail content.
type DetailIndex interface {
	Has(nodeID string) bool
}

// Options configure a compilation. Zero values select the defaults.
type Options struct {
	Title    string
	Details  DetailIndex
	Viewport *Viewport
}

// Compile maps each node to a RenderNode and each edge to a RenderEdge.
// It is pure: the same graph and tables always produce an equal Layout.
// Missing positions and styles degrade to FallbackPosition and the table
// default; they are never errors.
func Compile(g *graph.Graph, positions PositionTable, styles StyleTable, opts Options) *Layout {
	nodes := g.Nodes()
	edges := g.Edges()

	l := &Layout{
		Title:    opts.Title,
		Nodes:    make([]RenderNode, 0, len(nodes)),
		Edges:    make([]RenderEdge, 0, len(edges)),
		Columns:  g.Columns(),
		Legend:   buildLegend(styles),
		Viewport: DefaultViewport,
		index:    make(map[string]int, len(nodes)),
	}
	if opts.Viewport != nil {
		l.Viewport = *opts.Viewport
	}

	for _, n := range nodes {
		pos, positioned := positions.Resolve(n.ID)
		style, _ := styles.Resolve(n.Category)
		hasDetail := false
		if opts.Details != nil {
			hasDetail = opts.Details.Has(n.ID)
		}
		l.index[n.ID] = len(l.Nodes)
		l.Nodes = append(l.Nodes, RenderNode{
			ID:           n.ID,
			Label:        n.Label,
			Category:     n.Category,
			Position:     pos,
			Style:        style,
			SourceAnchor: AnchorRight,
			TargetAnchor: AnchorLeft,
			HasDetail:    hasDetail,
			Positioned:   positioned,
		})
	}

	for i, e := range edges {
		l.Edges = append(l.Edges, RenderEdge{
			ID:           EdgeID(i),
			Source:       e.From,
			Target:       e.To,
			SourceAnchor: AnchorRight,
			TargetAnchor: AnchorLeft,
			Connector:    "smoothstep",
			Marker:       "arrowclosed",
			StrokeWidth:  2,
		})
	}

	return l
}

// EdgeID is the stable identifier of the i-th edge.
func EdgeID(i int) string {
	return fmt.Sprintf("e%d", i)
}

// Unpositioned returns the IDs of nodes that received FallbackPosition.
func (l *Layout) Unpositioned() []string {
	var ids []string
	for _, n := range l.Nodes {
		if !n.Positioned {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func buildLegend(styles StyleTable) []LegendItem {
	items := make([]LegendItem, 0, len(graph.Categories))
	for _, c := range graph.Categories {
		s, _ := styles.Resolve(c)
		items = append(items, LegendItem{Category: c, Name: legendNames[c], Color: s.Border})
	}
	return items
}
