package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pathmap/internal/graph"
)

type detailSet map[string]bool

func (d detailSet) Has(id string) bool { return d[id] }

func abcGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(
		[]graph.Node{
			{ID: "A", Label: "Alpha", Category: graph.CategoryStart},
			{ID: "B", Label: "Beta", Category: graph.CategoryDecision},
			{ID: "C", Label: "Gamma", Category: graph.CategoryEnd},
		},
		[]graph.Edge{{From: "A", To: "B"}, {From: "B", To: "C"}},
	)
	require.NoError(t, err)
	return g
}

func abcPositions() PositionTable {
	return PositionTable{
		"A": {X: 50, Y: 400},
		"B": {X: 300, Y: 100},
		"C": {X: 550, Y: 100},
	}
}

func TestCompile_ResolvesPositionsStylesAnchors(t *testing.T) {
	l := Compile(abcGraph(t), abcPositions(), DefaultStyles(), Options{Title: "ABC", Details: detailSet{"B": true}})

	require.Len(t, l.Nodes, 3)
	assert.Equal(t, "ABC", l.Title)

	a, ok := l.Node("A")
	require.True(t, ok)
	assert.Equal(t, Position{X: 50, Y: 400}, a.Position)
	assert.True(t, a.Positioned)
	assert.Equal(t, "#10b981", a.Style.Border)
	assert.True(t, a.Style.Bold)
	assert.Equal(t, AnchorRight, a.SourceAnchor)
	assert.Equal(t, AnchorLeft, a.TargetAnchor)
	assert.False(t, a.HasDetail)

	b, _ := l.Node("B")
	assert.True(t, b.HasDetail)
	assert.Equal(t, "#3b82f6", b.Style.Border)

	c, _ := l.Node("C")
	assert.Equal(t, "#dc2626", c.Style.Border)
}

func TestCompile_EdgesGetIndexIDsAndLeftToRightAnchors(t *testing.T) {
	l := Compile(abcGraph(t), abcPositions(), DefaultStyles(), Options{})

	require.Len(t, l.Edges, 2)
	for i, e := range l.Edges {
		assert.Equal(t, EdgeID(i), e.ID)
		assert.Equal(t, AnchorRight, e.SourceAnchor)
		assert.Equal(t, AnchorLeft, e.TargetAnchor)
		assert.Equal(t, "smoothstep", e.Connector)
		assert.Equal(t, "arrowclosed", e.Marker)
	}
	assert.Equal(t, "e0", l.Edges[0].ID)
	assert.Equal(t, "A", l.Edges[0].Source)
	assert.Equal(t, "B", l.Edges[0].Target)
}

func TestCompile_EdgeEndpointsPresentInNodes(t *testing.T) {
	l := Compile(abcGraph(t), nil, DefaultStyles(), Options{})
	for _, e := range l.Edges {
		assert.True(t, l.Has(e.Source), "source %s missing", e.Source)
		assert.True(t, l.Has(e.Target), "target %s missing", e.Target)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	g := abcGraph(t)
	first := Compile(g, abcPositions(), DefaultStyles(), Options{})
	second := Compile(g, abcPositions(), DefaultStyles(), Options{})
	assert.Equal(t, first, second)
}

func TestCompile_MissingPositionFallsBack(t *testing.T) {
	positions := abcPositions()
	delete(positions, "C")

	l := Compile(abcGraph(t), positions, DefaultStyles(), Options{})
	c, ok := l.Node("C")
	require.True(t, ok)
	assert.Equal(t, FallbackPosition, c.Position)
	assert.False(t, c.Positioned)
	assert.Equal(t, []string{"C"}, l.Unpositioned())
}

func TestCompile_UnknownCategoryGetsDefaultStyle(t *testing.T) {
	g, err := graph.New([]graph.Node{{ID: "m", Label: "Milestone", Category: "milestone"}}, nil)
	require.NoError(t, err)

	styles := DefaultStyles()
	l := Compile(g, nil, styles, Options{})

	m, ok := l.Node("m")
	require.True(t, ok)
	assert.Equal(t, styles.Default, m.Style)
}

func TestCompile_EmptyStyleTableUsesDefault(t *testing.T) {
	custom := Style{Border: "#000", Fill: "#fff", Text: "#000", MinWidth: 100}
	l := Compile(abcGraph(t), abcPositions(), StyleTable{Default: custom}, Options{})
	for _, n := range l.Nodes {
		assert.Equal(t, custom, n.Style)
	}
}

func TestCompile_ColumnsLegendViewport(t *testing.T) {
	l := Compile(abcGraph(t), abcPositions(), DefaultStyles(), Options{})

	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C"}}, l.Columns)
	require.Len(t, l.Legend, 4)
	assert.Equal(t, "Options", l.Legend[1].Name)
	assert.Equal(t, "#f59e0b", l.Legend[2].Color)
	assert.Equal(t, DefaultViewport, l.Viewport)

	vp := Viewport{FitPadding: 10, MinZoom: 1, MaxZoom: 1}
	l = Compile(abcGraph(t), nil, DefaultStyles(), Options{Viewport: &vp})
	assert.Equal(t, vp, l.Viewport)
}

func TestLayout_Bounds(t *testing.T) {
	l := Compile(abcGraph(t), abcPositions(), DefaultStyles(), Options{})
	r := l.Bounds()

	assert.Equal(t, 50.0, r.MinX)
	assert.Equal(t, 100.0, r.MinY)
	assert.Equal(t, 550.0+140, r.MaxX)
	assert.Equal(t, 400.0+NodeHeight, r.MaxY)
	assert.Equal(t, r.MaxX-r.MinX, r.Width())

	empty := Compile(mustEmpty(t), nil, DefaultStyles(), Options{})
	assert.Equal(t, Rect{}, empty.Bounds())
}

func mustEmpty(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(nil, nil)
	require.NoError(t, err)
	return g
}
