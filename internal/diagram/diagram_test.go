package diagram

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pathmap/internal/content"
	"github.com/rendis/pathmap/internal/dataset"
	"github.com/rendis/pathmap/internal/graph"
	"github.com/rendis/pathmap/internal/layout"
	"github.com/rendis/pathmap/pkg/schema"
)

func abcLayout(t *testing.T) *layout.Layout {
	t.Helper()
	g, err := graph.New(
		[]graph.Node{
			{ID: "A", Label: "Start here", Category: graph.CategoryStart},
			{ID: "B", Label: `Say "hi"`, Category: graph.CategoryProcess},
			{ID: "C", Label: "Done", Category: graph.CategoryEnd},
		},
		[]graph.Edge{{From: "A", To: "B"}, {From: "B", To: "C"}},
	)
	require.NoError(t, err)
	positions := layout.PositionTable{"A": {X: 0, Y: 100}, "B": {X: 250, Y: 100}, "C": {X: 500, Y: 0}}
	return layout.Compile(g, positions, layout.DefaultStyles(), layout.Options{Title: "ABC"})
}

func bundledLayout(t *testing.T) *layout.Layout {
	t.Helper()
	ds := dataset.Bundled()
	g, err := graph.FromDataset(ds)
	require.NoError(t, err)
	return layout.Compile(g, layout.PositionsFromDataset(ds), layout.DefaultStyles(),
		layout.Options{Title: ds.Title, Details: content.FromDataset(ds)})
}

func TestStepPath(t *testing.T) {
	assert.Equal(t, "M 120 122 H 250", stepPath(120, 122, 250, 122))
	assert.Equal(t, "M 120 122 H 185 V 22 H 250", stepPath(120, 122, 250, 22))
	assert.Equal(t, "M 0.5 1 H 2.25", stepPath(0.5, 1, 2.25, 1))
}

func TestAnchorPoint(t *testing.T) {
	l := abcLayout(t)
	a, _ := l.Node("A")
	x, y := anchorPoint(a, layout.AnchorRight)
	assert.Equal(t, boxWidth(a), x)
	assert.Equal(t, 122.0, y)

	x, y = anchorPoint(a, layout.AnchorLeft)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 122.0, y)
}

func TestBoxWidth_GrowsForLongLabels(t *testing.T) {
	n := layout.RenderNode{Label: "x", Style: layout.Style{MinWidth: 120}}
	assert.Equal(t, 120.0, boxWidth(n))
	n.Label = strings.Repeat("y", 40)
	assert.Equal(t, float64(40*charWidth+24), boxWidth(n))
}

func TestRenderMermaid(t *testing.T) {
	out := RenderMermaid(abcLayout(t), MermaidOptions{ClickCallback: "pathmapSelect", Selected: "B"})

	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.Contains(t, out, "%% ABC")
	assert.Contains(t, out, `A(["Start here"])`)
	assert.Contains(t, out, `B["Say #quot;hi#quot;"]`)
	assert.Contains(t, out, `C[["Done"]]`)
	assert.Contains(t, out, "A --> B\n")
	assert.Contains(t, out, "B --> C\n")
	assert.Contains(t, out, "classDef cat_start fill:#ecfdf5,stroke:#10b981,color:#065f46,stroke-width:2px,font-weight:bold")
	assert.Contains(t, out, "class C cat_end")
	assert.Contains(t, out, "class B selected")
	assert.Contains(t, out, `click A pathmapSelect "Show details"`)

	// edges keep layout order
	assert.Less(t, strings.Index(out, "A --> B"), strings.Index(out, "B --> C"))
}

func TestRenderMermaid_NoClicks(t *testing.T) {
	out := RenderMermaid(abcLayout(t), MermaidOptions{})
	assert.NotContains(t, out, "click ")
	assert.NotContains(t, out, "selected")
}

func TestRenderMermaid_DistinctIDsStayDistinct(t *testing.T) {
	g, err := graph.New(
		[]graph.Node{
			{ID: "a-b", Label: "Dash", Category: graph.CategoryStart},
			{ID: "a_b", Label: "Underscore", Category: graph.CategoryEnd},
			{ID: "a b", Label: "Space", Category: graph.CategoryEnd},
		},
		[]graph.Edge{{From: "a-b", To: "a_b"}, {From: "a-b", To: "a b"}},
	)
	require.NoError(t, err)
	l := layout.Compile(g, layout.PositionTable{}, layout.DefaultStyles(), layout.Options{})

	out := RenderMermaid(l, MermaidOptions{Selected: "a_b"})
	assert.Contains(t, out, `a_2d_b(["Dash"])`)
	assert.Contains(t, out, `a__b[["Underscore"]]`)
	assert.Contains(t, out, `a_20_b[["Space"]]`)
	assert.Contains(t, out, "a_2d_b --> a__b\n")
	assert.Contains(t, out, "a_2d_b --> a_20_b\n")
	assert.Contains(t, out, "class a__b selected")
	assert.NotContains(t, out, "class a_2d_b selected")
}

func TestMermaidSafeID(t *testing.T) {
	assert.Equal(t, "bac", mermaidSafeID("bac"))
	assert.Equal(t, "B2", mermaidSafeID("B2"))
	assert.Equal(t, "x__y", mermaidSafeID("x_y"))
	assert.Equal(t, "x_2e_y", mermaidSafeID("x.y"))
	assert.Equal(t, "_e9_t_e9_", mermaidSafeID("été"))
	assert.NotEqual(t, mermaidSafeID("a_2d_b"), mermaidSafeID("a-b"))
}

func TestRenderMermaid_TitleAndCallbackCannotInjectStatements(t *testing.T) {
	l := abcLayout(t)
	l.Title = "ABC\nclick A evil\r\nstyle A fill:#f00"

	out := RenderMermaid(l, MermaidOptions{ClickCallback: "alert(1)"})
	assert.Contains(t, out, "%% ABC click A evil style A fill:#f00\n")
	assert.NotContains(t, out, "\nclick A evil")
	assert.NotContains(t, out, "alert(1)")

	out = RenderMermaid(abcLayout(t), MermaidOptions{ClickCallback: "window.pathmap.select"})
	assert.Contains(t, out, `click A window.pathmap.select "Show details"`)
}

func TestValidateCallback(t *testing.T) {
	for _, ok := range []string{"", "showDetails", "_cb", "$", "app.select"} {
		assert.NoError(t, ValidateCallback(ok), ok)
	}
	for _, bad := range []string{"alert(1)", "a b", "x\nclick", "1abc", "a..b", "a."} {
		err := ValidateCallback(bad)
		assert.True(t, schema.HasCode(err, schema.ErrCodeValidation), bad)
	}
}

func TestRenderASCII(t *testing.T) {
	out := RenderASCII(abcLayout(t), "C")

	assert.Contains(t, out, "=== ABC ===")
	assert.Contains(t, out, "│ Start here │")
	assert.Contains(t, out, "[START]")
	assert.Contains(t, out, "[OUTCOME]")
	assert.Contains(t, out, "* Done")
	assert.Contains(t, out, "A ─→ B")

	// columns render top to bottom
	assert.Less(t, strings.Index(out, "Start here"), strings.Index(out, "Say"))
	assert.Less(t, strings.Index(out, "Say"), strings.Index(out, "Done"))
}

func TestRenderASCII_BundledSideBySide(t *testing.T) {
	l := bundledLayout(t)
	out := RenderASCII(l, "")
	for _, n := range l.Nodes {
		assert.Contains(t, out, firstLine(n.Label))
	}
	assert.Equal(t, len(l.Edges), strings.Count(out, " ─→ "))
}

func TestRenderSVG(t *testing.T) {
	l := abcLayout(t)
	out := RenderSVG(l, SVGOptions{Selected: "A"})

	assert.True(t, strings.HasPrefix(out, "<svg "))
	assert.Contains(t, out, `data-node-id="A"`)
	assert.Contains(t, out, `class="node cat-start selected"`)
	assert.Contains(t, out, `<title>ABC</title>`)
	assert.Contains(t, out, `Say &#34;hi&#34;`)
	assert.Contains(t, out, `id="e0"`)
	assert.Contains(t, out, `id="e1"`)
	assert.Contains(t, out, `marker-end="url(#arrow-10b981)"`)
	assert.Contains(t, out, `data-min-zoom="0.5" data-max-zoom="2"`)
	assert.Equal(t, len(l.Nodes), strings.Count(out, "<rect "))
	assert.Equal(t, len(l.Edges), strings.Count(out, "<path id="))
}

func TestRenderSVG_ViewBoxIncludesPadding(t *testing.T) {
	out := RenderSVG(abcLayout(t), SVGOptions{Padding: 10})
	// min x 0, min y 0 -> -10 -10
	assert.Contains(t, out, `viewBox="-10 -10 `)
}

func TestPinnedPos(t *testing.T) {
	assert.Equal(t, "75,-150!", pinnedPos(layout.Position{X: 100, Y: 200}))
	assert.Equal(t, "0,0!", pinnedPos(layout.Position{}))
}

func TestRenderImage(t *testing.T) {
	png, err := RenderImage(context.Background(), abcLayout(t))
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Mermaid")
	require.NoError(t, err)
	assert.Equal(t, FormatMermaid, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatASCII, f)

	_, err = ParseFormat("gif")
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.True(t, FormatPNG.Binary())
	assert.False(t, FormatSVG.Binary())
}

func TestRender_JSON(t *testing.T) {
	out, err := Render(context.Background(), abcLayout(t), FormatJSON, Options{})
	require.NoError(t, err)

	var decoded struct {
		Title string `json:"title"`
		Edges []struct {
			ID string `json:"id"`
		} `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "ABC", decoded.Title)
	require.Len(t, decoded.Edges, 2)
	assert.Equal(t, "e0", decoded.Edges[0].ID)
}

func TestRender_Dispatch(t *testing.T) {
	l := abcLayout(t)
	ctx := context.Background()
	for _, f := range []Format{FormatASCII, FormatMermaid, FormatSVG} {
		out, err := Render(ctx, l, f, Options{Selected: "A"})
		require.NoError(t, err, f)
		assert.NotEmpty(t, out, f)
	}
	_, err := Render(ctx, l, Format("gif"), Options{})
	assert.Error(t, err)
}
