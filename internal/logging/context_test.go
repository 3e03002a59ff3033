package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withAll(ctx context.Context) context.Context {
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithNodeID(ctx, "bac")
	return WithDataset(ctx, "bundled:pathways")
}

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", SessionID(ctx))
	assert.Equal(t, "", NodeID(ctx))
	assert.Equal(t, "", Dataset(ctx))

	ctx = withAll(ctx)
	assert.Equal(t, "sess-1", SessionID(ctx))
	assert.Equal(t, "bac", NodeID(ctx))
	assert.Equal(t, "bundled:pathways", Dataset(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogWith(withAll(context.Background()), logger).Info("node clicked")

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-1")
	assert.Contains(t, output, "node_id=bac")
	assert.Contains(t, output, "dataset=bundled:pathways")
	assert.Contains(t, output, "node clicked")
}

func TestLogWithPartial(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogWith(WithSessionID(context.Background(), "only"), logger).Info("partial")

	output := buf.String()
	assert.Contains(t, output, "session_id=only")
	assert.NotContains(t, output, "node_id")
	assert.NotContains(t, output, "dataset")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	logger.InfoContext(withAll(context.Background()), "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"session_id":"sess-1"`)
	assert.Contains(t, output, `"node_id":"bac"`)
	assert.Contains(t, output, `"dataset":"bundled:pathways"`)
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "bare log")

	output := buf.String()
	assert.NotContains(t, output, "session_id")
	assert.NotContains(t, output, "node_id")
	assert.Contains(t, output, "bare log")
}

func TestCorrelationHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	handler := NewCorrelationHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "panel")}).WithGroup("req"))

	logger.InfoContext(WithSessionID(context.Background(), "sess-attr"), "grouped", "path", "/")

	output := buf.String()
	assert.Contains(t, output, `"component":"panel"`)
	assert.Contains(t, output, "sess-attr")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.InfoContext(context.Background(), "hidden")
	logger.WarnContext(WithNodeID(context.Background(), "x"), "shown")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "shown")
	assert.Contains(t, output, "node_id=x")
}

func TestNewLeveled_LevelChangesAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	var level slog.LevelVar
	level.Set(slog.LevelError)
	logger := NewLeveled(&buf, &level)

	logger.Info("before")
	level.Set(slog.LevelInfo)
	logger.Info("after")

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")
}
