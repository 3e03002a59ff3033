package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pathmap/internal/dataset"
	"github.com/rendis/pathmap/internal/selection"
	"github.com/rendis/pathmap/internal/store"
	"github.com/rendis/pathmap/internal/streaming"
	"github.com/rendis/pathmap/pkg/schema"
)

const abcJSON = `{
  "title": "ABC",
  "nodes": [
    {"id": "A", "label": "Start", "type": "start"},
    {"id": "B", "label": "Mid", "type": "process"},
    {"id": "C", "label": "End", "type": "end"}
  ],
  "edges": [{"from": "A", "to": "B"}, {"from": "B", "to": "C"}],
  "positions": {"A": {"x": 0, "y": 0}, "B": {"x": 200, "y": 0}, "C": {"x": 400, "y": 0}},
  "details": {"B": {"title": "Middle"}}
}`

const abYAML = `title: AB
nodes:
  - {id: A, label: Start, type: start}
  - {id: B, label: Mid, type: process}
edges:
  - {from: A, to: B}
positions:
  A: {x: 0, y: 0}
  B: {x: 200, y: 0}
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func newTestStore(t *testing.T) *store.LibSQLStore {
	t.Helper()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_Bundled(t *testing.T) {
	a, err := New(context.Background(), Options{})
	require.NoError(t, err)

	snap := a.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 22, snap.Graph.Len())
	assert.Len(t, snap.Layout.Edges, 25)
	assert.Equal(t, 10, snap.Details.Len())
	assert.Empty(t, snap.Warnings)
	assert.Equal(t, "Educational Pathways in Morocco", snap.Layout.Title)
	assert.Equal(t, "", a.Source())
}

func TestNew_InvalidSource(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "bad.json", `{"nodes":[{"id":"A","label":"a"}],"edges":[{"from":"A","to":"Z"}]}`)

	_, err := New(context.Background(), Options{Source: p})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestReload_SwapsAndResetsSessions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := writeFile(t, dir, "data.json", abcJSON)

	hub := streaming.NewMemoryHub()
	events, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{})
	require.NoError(t, err)
	defer cancel()

	a, err := New(ctx, Options{Source: p, Hub: hub})
	require.NoError(t, err)
	assert.Equal(t, schema.EventDatasetLoaded, (<-events).EventType)

	c := a.Sessions().Create()
	_, err = c.ClickNode(ctx, "C")
	require.NoError(t, err)
	<-events // selection_opened

	changed, err := a.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "unchanged file is not reinstalled")

	yamlPath := writeFile(t, dir, "data.yaml", abYAML)
	require.NoError(t, os.Remove(p))
	_, err = a.Load(ctx, yamlPath)
	require.NoError(t, err)

	assert.Equal(t, selection.None, c.State(), "selection of removed node is cleared")
	assert.Equal(t, 2, a.Snapshot().Graph.Len())
	assert.Equal(t, yamlPath, a.Source())

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).EventType)
	}
	assert.Contains(t, types, schema.EventSelectionClosed)
	assert.Contains(t, types, schema.EventDatasetReloaded)
}

func TestReload_RejectKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := writeFile(t, dir, "data.json", abcJSON)

	a, err := New(ctx, Options{Source: p})
	require.NoError(t, err)
	before := a.Snapshot()

	writeFile(t, dir, "data.json", `{"nodes":[{"id":"A","label":"a"},{"id":"A","label":"dup"}]}`)
	changed, err := a.Reload(ctx)
	require.Error(t, err)
	assert.False(t, changed)
	assert.Same(t, before, a.Snapshot())

	writeFile(t, dir, "data.json", `{not json`)
	_, err = a.Reload(ctx)
	require.Error(t, err)
	assert.Same(t, before, a.Snapshot())
}

func TestInstall_PersistsVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()
	p := writeFile(t, dir, "data.json", abcJSON)

	a, err := New(ctx, Options{Source: p, Store: s})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Snapshot().Version)

	writeFile(t, dir, "data.json", strings.Replace(abcJSON, `"ABC"`, `"ABC v2"`, 1))
	changed, err := a.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, a.Snapshot().Version)
	assert.Equal(t, "ABC v2", a.Snapshot().Layout.Title)

	snap, err := a.Install(ctx, p, dataset.Bundled())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Version)

	rec, err := s.GetDataset(ctx, p, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Version)
	assert.Equal(t, 22, rec.NodeCount)
	assert.Equal(t, snap.Checksum, rec.Checksum)
}

func TestSessionsLogToStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := New(ctx, Options{Store: s})
	require.NoError(t, err)

	c := a.Sessions().Create()
	_, err = c.ClickNode(ctx, "bac")
	require.NoError(t, err)

	replayed, err := store.NewEventLog(s).ReplaySelection(ctx, c.SessionID())
	require.NoError(t, err)
	assert.Equal(t, "bac", replayed)
}

func TestInstall_SameContentKeepsVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := writeFile(t, t.TempDir(), "data.json", abcJSON)

	first, err := New(ctx, Options{Source: p, Store: s})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Snapshot().Version)

	// A restart on the same file must not add a version.
	second, err := New(ctx, Options{Source: p, Store: s})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Snapshot().Version)

	_, err = second.Load(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Snapshot().Version)

	recs, err := s.ListDatasets(ctx, store.DatasetFilter{Name: p})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestLoad_ConcurrentSessionsMatchSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	abc := writeFile(t, dir, "abc.json", abcJSON)
	ab := writeFile(t, dir, "ab.yaml", abYAML)

	a, err := New(ctx, Options{Source: abc})
	require.NoError(t, err)
	c := a.Sessions().Create()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		src := abc
		if i%2 == 1 {
			src = ab
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Load(ctx, src)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	hasC := a.Snapshot().Layout.Has("C")
	_, err = c.ClickNode(ctx, "C")
	if hasC {
		assert.NoError(t, err, "session must accept nodes of the current layout")
	} else {
		assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound), "session must reject nodes the current layout lacks")
	}

	// A session created after the last load sees the same layout.
	_, err = a.Sessions().Create().ClickNode(ctx, "C")
	assert.Equal(t, hasC, err == nil)
}

func TestSweepSessions_DropsIdle(t *testing.T) {
	a, err := New(context.Background(), Options{})
	require.NoError(t, err)
	a.Sessions().Create()
	a.Sessions().GetOrCreate("mcp-client")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.SweepSessions(ctx, 5*time.Millisecond, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return a.Sessions().Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
