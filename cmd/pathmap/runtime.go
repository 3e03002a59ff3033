package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rendis/pathmap/internal/app"
	"github.com/rendis/pathmap/internal/logging"
	"github.com/rendis/pathmap/internal/store"
	"github.com/rendis/pathmap/internal/streaming"
)

// Selection sessions untouched for sessionIdleTimeout are dropped.
const (
	sessionIdleTimeout   = 30 * time.Minute
	sessionSweepInterval = time.Minute
)

// runtime is the wiring shared by serve and mcp.
type runtime struct {
	level  *slog.LevelVar
	logger *slog.Logger
	store  *store.LibSQLStore
	hub    *streaming.MemoryHub
	app    *app.App
}

// openRuntime opens the store (when db_path is set), the event hub and the
// app, loading the configured dataset. Logs go to logOut.
func openRuntime(ctx context.Context, cfg Config, logOut io.Writer) (*runtime, error) {
	rt := &runtime{level: new(slog.LevelVar), hub: streaming.NewMemoryHub()}
	rt.level.Set(logging.ParseLevel(cfg.LogLevel))
	rt.logger = logging.NewLeveled(logOut, rt.level)

	if cfg.DBPath != "" {
		s, err := openStore(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		rt.store = s
	}

	opts := app.Options{
		Source: cfg.Dataset,
		Hub:    rt.hub,
		Logger: rt.logger,
	}
	if rt.store != nil {
		opts.Store = rt.store
	}
	a, err := app.New(ctx, opts)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	rt.app = a
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Warn("close store", slog.String("error", err.Error()))
		}
	}
}

// openStore opens and migrates the libsql database at path.
func openStore(ctx context.Context, path string) (*store.LibSQLStore, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") && !strings.Contains(dsn, "://") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = "file:" + dsn
	}
	s, err := store.NewLibSQLStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}
