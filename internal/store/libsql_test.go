package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pathmap/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestLoadMigrations_Ordered(t *testing.T) {
	ms, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "initial_schema", ms[0].Name)
	for i := 1; i < len(ms); i++ {
		assert.Less(t, ms[i-1].Version, ms[i].Version)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (x INT);\n-- only a comment\n;\nCREATE INDEX i ON a(x);")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Contains(t, stmts[1], "CREATE INDEX i")
}

func TestSaveDataset_Versions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &DatasetRecord{Name: "pathways", Title: "v1", Document: json.RawMessage(`{"nodes":[]}`)}
	require.NoError(t, s.SaveDataset(ctx, first))
	assert.Equal(t, 1, first.Version)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, Checksum([]byte(`{"nodes":[]}`)), first.Checksum)

	second := &DatasetRecord{Name: "pathways", Title: "v2", Document: json.RawMessage(`{"nodes":[{"id":"a"}]}`), NodeCount: 1}
	require.NoError(t, s.SaveDataset(ctx, second))
	assert.Equal(t, 2, second.Version)

	latest, err := s.GetDataset(ctx, "pathways", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, "v2", latest.Title)
	assert.Equal(t, 1, latest.NodeCount)
	assert.JSONEq(t, `{"nodes":[{"id":"a"}]}`, string(latest.Document))

	v1, err := s.GetDataset(ctx, "pathways", 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.Title)

	all, err := s.ListDatasets(ctx, DatasetFilter{Name: "pathways"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	limited, err := s.ListDatasets(ctx, DatasetFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSaveDataset_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveDataset(ctx, &DatasetRecord{Document: json.RawMessage(`{}`)})
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	err = s.SaveDataset(ctx, &DatasetRecord{Name: "x", Document: json.RawMessage(`{`)})
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestGetDataset_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetDataset(ctx, "missing", 0)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	_, err = s.GetDataset(ctx, "missing", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing@3")
}

func TestAppendEvent_PerSessionSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendEvent(ctx, &Event{SessionID: "s1", NodeID: "a", Type: schema.EventSelectionOpened}))
	}
	other := &Event{SessionID: "s2", Type: schema.EventSelectionClosed}
	require.NoError(t, s.AppendEvent(ctx, other))
	assert.Equal(t, int64(1), other.Sequence)

	events, err := s.GetEvents(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Sequence)
		assert.Equal(t, "a", e.NodeID)
		assert.False(t, e.Timestamp.IsZero())
	}

	since, err := s.GetEvents(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, int64(3), since[0].Sequence)
}

func TestAppendEvent_RequiresSession(t *testing.T) {
	s := newTestStore(t)
	err := s.AppendEvent(context.Background(), &Event{Type: schema.EventSelectionOpened})
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestAppendEvent_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.AppendEvent(ctx, &Event{SessionID: "s", Type: schema.EventSelectionOpened})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	events, err := s.GetEvents(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, events, 10)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
}

func TestGetEventsByType_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, &Event{SessionID: "s1", NodeID: "a", Type: schema.EventSelectionOpened}))
	require.NoError(t, s.AppendEvent(ctx, &Event{SessionID: "s1", NodeID: "a", Type: schema.EventSelectionClosed}))
	require.NoError(t, s.AppendEvent(ctx, &Event{SessionID: "s2", NodeID: "b", Type: schema.EventSelectionOpened}))

	opened, err := s.GetEventsByType(ctx, schema.EventSelectionOpened, EventFilter{})
	require.NoError(t, err)
	assert.Len(t, opened, 2)

	bySession, err := s.GetEventsByType(ctx, schema.EventSelectionOpened, EventFilter{SessionID: "s2"})
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, "b", bySession[0].NodeID)

	byNode, err := s.GetEventsByType(ctx, schema.EventSelectionOpened, EventFilter{NodeID: "a", Limit: 5})
	require.NoError(t, err)
	require.Len(t, byNode, 1)
	assert.Equal(t, "s1", byNode[0].SessionID)
}
