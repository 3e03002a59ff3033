package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pathmap/internal/app"
	"github.com/rendis/pathmap/internal/panel"
	"github.com/rendis/pathmap/internal/store"
	"github.com/rendis/pathmap/internal/streaming"
	"github.com/rendis/pathmap/pkg/mcp"
	"github.com/rendis/pathmap/pkg/schema"
)

const careerSwitch = "../../examples/datasets/career-switch.yaml"

type testEnv struct {
	store  *store.LibSQLStore
	hub    *streaming.MemoryHub
	app    *app.App
	server *mcp.PathmapServer
	panel  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })

	hub := streaming.NewMemoryHub()
	a, err := app.New(ctx, app.Options{Store: s, Hub: hub})
	require.NoError(t, err)

	return &testEnv{
		store:  s,
		hub:    hub,
		app:    a,
		server: mcp.NewPathmapServer(mcp.PathmapServerDeps{App: a}),
		panel:  panel.NewPanelServer(panel.PanelDeps{App: a}).Handler(),
	}
}

func (e *testEnv) call(t *testing.T, tool string, args map[string]any) string {
	t.Helper()
	msg := mustJSON(t, map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "tools/call",
		"params": map[string]any{"name": tool, "arguments": args},
	})
	resp := e.server.MCPServer().HandleMessage(context.Background(), msg)
	require.NotNil(t, resp)
	return string(mustJSON(t, resp))
}

func (e *testEnv) http(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.panel.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return addr
}

// TestSSEServerStartStop verifies that the SSE server starts, accepts connections, and shuts down.
func TestSSEServerStartStop(t *testing.T) {
	env := newTestEnv(t)
	addr := freeAddr(t)
	baseURL := "http://" + addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- env.server.ServeSSE(ctx, addr, baseURL) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/sse")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 3*time.Second, 50*time.Millisecond, "SSE server did not start")

	cancel()
	select {
	case srvErr := <-errCh:
		if srvErr != nil {
			assert.ErrorIs(t, srvErr, http.ErrServerClosed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestSSEPortInUse(t *testing.T) {
	env := newTestEnv(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	addr := l.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = env.server.ServeSSE(ctx, addr, fmt.Sprintf("http://%s", addr))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
}

// A browser session and an MCP client driving the same session id see each
// other's selections.
func TestBrowserAndAgentShareSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.http(t, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	var sessionID string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "pathmap_session" {
			sessionID = c.Value
		}
	}
	require.NotEmpty(t, sessionID)

	rec = env.http(t, http.MethodPost, "/api/sessions/"+sessionID+"/click/cpge")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := env.call(t, "pathmap.panel", map[string]any{"session_id": sessionID})
	assert.Contains(t, out, "Classes Préparatoires aux Grandes Écoles")

	out = env.call(t, "pathmap.close", map[string]any{"session_id": sessionID, "source": "keyboard"})
	assert.Contains(t, out, schema.EventSelectionClosed)

	rec = env.http(t, http.MethodGet, "/api/sessions/"+sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "none", view.State)

	events, err := env.store.GetEvents(context.Background(), sessionID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, schema.EventSelectionOpened, events[0].Type)
	assert.Equal(t, schema.EventSelectionClosed, events[1].Type)
}

// Switching to a YAML dataset resets open panels and is announced on the hub.
func TestSwitchDataset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ch, unsub, err := env.hub.Subscribe(ctx, streaming.EventFilter{EventTypes: []string{schema.EventDatasetReloaded}})
	require.NoError(t, err)
	defer unsub()

	ctl := env.app.Sessions().GetOrCreate("agent")
	_, err = ctl.ClickNode(ctx, "bac")
	require.NoError(t, err)

	snap, err := env.app.Load(ctx, careerSwitch)
	require.NoError(t, err)
	assert.Equal(t, 7, snap.Graph.Len())
	assert.Equal(t, 1, snap.Version)

	select {
	case ev := <-ch:
		assert.Equal(t, schema.EventDatasetReloaded, ev.EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("no dataset_reloaded event")
	}

	assert.False(t, ctl.View().Open, "sessions close when the dataset changes")

	out := env.call(t, "pathmap.select", map[string]any{"session_id": "agent", "node_id": "bootcamp"})
	assert.Contains(t, out, "Coding Bootcamp")

	rec := env.http(t, http.MethodGet, "/diagram/mermaid?selected=portfolio")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "class portfolio selected")
	assert.False(t, strings.Contains(rec.Body.String(), "cpge"))
}
