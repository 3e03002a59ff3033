package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pathmap/pkg/schema"
)

func appendSelection(t *testing.T, el *EventLog, session, node, typ string, p SelectionPayload) {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, el.AppendEvent(context.Background(), &Event{
		SessionID: session, NodeID: node, Type: typ, Payload: raw,
	}))
}

func TestEventLog_ReplaySelection(t *testing.T) {
	el := NewEventLog(newTestStore(t))
	ctx := context.Background()

	appendSelection(t, el, "s1", "a", schema.EventSelectionOpened, SelectionPayload{To: "a"})
	appendSelection(t, el, "s1", "b", schema.EventSelectionChanged, SelectionPayload{From: "a", To: "b"})

	got, err := el.ReplaySelection(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	appendSelection(t, el, "s1", "b", schema.EventSelectionClosed, SelectionPayload{From: "b", Source: schema.CloseSourceOverlay})
	got, err = el.ReplaySelection(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = el.ReplaySelection(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEventLog_ReplaySelection_SequenceGap(t *testing.T) {
	s := newTestStore(t)
	el := NewEventLog(s)
	ctx := context.Background()

	appendSelection(t, el, "s1", "a", schema.EventSelectionOpened, SelectionPayload{To: "a"})
	_, err := s.DB().Exec(`INSERT INTO events (session_id, node_id, event_type, timestamp, sequence) VALUES ('s1', 'b', ?, ?, 5)`,
		schema.EventSelectionChanged, time.Now().UTC())
	require.NoError(t, err)

	_, err = el.ReplaySelection(ctx, "s1")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeStore))
}

func TestEventLog_TopNodes(t *testing.T) {
	el := NewEventLog(newTestStore(t))
	ctx := context.Background()

	appendSelection(t, el, "s1", "a", schema.EventSelectionOpened, SelectionPayload{To: "a"})
	appendSelection(t, el, "s1", "b", schema.EventSelectionChanged, SelectionPayload{From: "a", To: "b"})
	appendSelection(t, el, "s2", "b", schema.EventSelectionOpened, SelectionPayload{To: "b"})
	appendSelection(t, el, "s2", "b", schema.EventSelectionClosed, SelectionPayload{From: "b"})

	top, err := el.TopNodes(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []NodeViews{{NodeID: "b", Views: 2}, {NodeID: "a", Views: 1}}, top)

	top, err = el.TopNodes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestDecodeSelection(t *testing.T) {
	p, err := DecodeSelection(&Event{Payload: json.RawMessage(`{"from":"a","source":"keyboard"}`)})
	require.NoError(t, err)
	assert.Equal(t, SelectionPayload{From: "a", Source: schema.CloseSourceKeyboard}, p)

	p, err = DecodeSelection(&Event{})
	require.NoError(t, err)
	assert.Equal(t, SelectionPayload{}, p)

	_, err = DecodeSelection(&Event{Payload: json.RawMessage(`[`)})
	assert.Error(t, err)
}
