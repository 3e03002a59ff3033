package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pathmap/pkg/schema"
)

func TestBundled_Shape(t *testing.T) {
	ds := Bundled()

	assert.Equal(t, "Educational Pathways in Morocco", ds.Title)
	assert.Len(t, ds.Nodes, 22)
	assert.Len(t, ds.Edges, 25)
	assert.Len(t, ds.Positions, 22)
	assert.Len(t, ds.Details, 10)

	assert.Equal(t, schema.NodeDefinition{ID: "bac", Label: "Bac Science Maths A", Type: "start"}, ds.Nodes[0])
	assert.Equal(t, schema.Coordinate{X: 800, Y: 800}, ds.Positions["certs_portfolio"])
	assert.Equal(t, []string{"Practical skills", "Job-ready", "Free tuition", "Industry relevant"}, ds.Details["bootcamp"].Pros)
}

func TestBundled_ReturnsIndependentCopies(t *testing.T) {
	a := Bundled()
	a.Nodes[0].Label = "changed"
	b := Bundled()
	assert.Equal(t, "Bac Science Maths A", b.Nodes[0].Label)
}

const yamlDoc = `
title: Tiny
nodes:
  - {id: A, label: Alpha, type: start}
  - {id: B, label: Beta, type: decision}
edges:
  - {from: A, to: B}
positions:
  A: {x: 10, y: 20}
details:
  B:
    title: Beta stage
    next_steps: Done
    cons: [slow]
`

func TestParse_YAML(t *testing.T) {
	ds, err := Parse([]byte(yamlDoc), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "Tiny", ds.Title)
	require.Len(t, ds.Nodes, 2)
	assert.Equal(t, "B", ds.Edges[0].To)
	assert.Equal(t, 20.0, ds.Positions["A"].Y)
	assert.Equal(t, "Done", ds.Details["B"].NextSteps)
	assert.Equal(t, []string{"slow"}, ds.Details["B"].Cons)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [], "edges": [], "colour": "red"}`), FormatJSON)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = Parse([]byte("nodes: []\nlayout: auto\n"), FormatYAML)
	require.Error(t, err)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte(`{}`), Format("toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dataset format")
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("paths.yaml"))
	assert.Equal(t, FormatYAML, DetectFormat("PATHS.YML"))
	assert.Equal(t, FormatJSON, DetectFormat("paths.json"))
	assert.Equal(t, FormatJSON, DetectFormat("paths"))
}

func TestSource(t *testing.T) {
	ds, raw, err := Source("")
	require.NoError(t, err)
	assert.Len(t, ds.Nodes, 22)
	assert.NotEmpty(t, raw)

	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	ds, raw, err = Source(path)
	require.NoError(t, err)
	assert.Equal(t, "Tiny", ds.Title)
	assert.Equal(t, yamlDoc, string(raw))

	_, _, err = Source(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
