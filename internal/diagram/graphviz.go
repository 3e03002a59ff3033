package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/rendis/pathmap/internal/layout"
	"github.com/rendis/pathmap/pkg/schema"
)

// points per layout unit; layout space is CSS pixels
const pointsPerUnit = 0.75

// RenderImage renders a layout as PNG with graphviz. The neato engine is used
// with every node pinned to its curated coordinate, so the image matches the
// interactive view instead of a recomputed layout.
func RenderImage(ctx context.Context, l *layout.Layout) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, renderError("create graphviz", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.NEATO)

	g, err := gv.Graph()
	if err != nil {
		return nil, renderError("create graph", err)
	}
	defer g.Close()

	g.SetRankDir(cgraph.LRRank)
	if l.Title != "" {
		g.SetLabel(l.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(l.Nodes))
	for _, n := range l.Nodes {
		gvNode, nErr := g.CreateNodeByName(n.ID)
		if nErr != nil {
			return nil, renderError("create node "+n.ID, nErr)
		}
		applyNodeStyle(gvNode, n)
		gvNodes[n.ID] = gvNode
	}

	for _, e := range l.Edges {
		from, to := gvNodes[e.Source], gvNodes[e.Target]
		if from == nil || to == nil {
			continue
		}
		if _, eErr := g.CreateEdgeByName(e.ID, from, to); eErr != nil {
			return nil, renderError("create edge "+e.ID, eErr)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.PNG, &buf); err != nil {
		return nil, renderError("render PNG", err)
	}
	return buf.Bytes(), nil
}

// applyNodeStyle copies the category style onto a graphviz node and pins it.
// Graphviz y grows upward, so layout y is negated.
func applyNodeStyle(gvNode *cgraph.Node, n layout.RenderNode) {
	s := n.Style
	gvNode.SetLabel(firstLine(n.Label))
	gvNode.SetShape(cgraph.BoxShape)
	gvNode.SetStyle(cgraph.NodeStyle("filled,rounded"))
	gvNode.SetFillColor(s.Fill)
	gvNode.SetColor(s.Border)
	gvNode.SetFontColor(s.Text)
	gvNode.SetWidth(boxWidth(n) / 96)
	gvNode.SetHeight(float64(layout.NodeHeight) / 96)
	gvNode.SafeSet("pos", pinnedPos(n.Position), "")
	gvNode.SafeSet("pin", "true", "false")
}

// pinnedPos formats a neato position that the layout engine must not move.
func pinnedPos(p layout.Position) string {
	y := -p.Y * pointsPerUnit
	if y == 0 {
		y = 0 // avoid "-0"
	}
	return fmt.Sprintf("%s,%s!", num(p.X*pointsPerUnit), num(y))
}

func renderError(stage string, err error) error {
	return schema.NewErrorf(schema.ErrCodeRender, "diagram: %s: %s", stage, err.Error()).WithCause(err)
}
