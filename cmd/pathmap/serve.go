package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rendis/pathmap/internal/logging"
	"github.com/rendis/pathmap/internal/panel"
	"github.com/rendis/pathmap/internal/reload"
	"github.com/rendis/pathmap/pkg/mcp"
)

const shutdownTimeout = 10 * time.Second

// runServe starts the web panel, the JSON API and the MCP SSE endpoint on a
// single listener. SIGHUP re-reads the configuration.
func runServe(args []string) {
	cfg := loadConfig()

	fs := serveFlags(&cfg)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	overrides := flagOverridesFrom(fs, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, overrides); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveFlags(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "TCP listen address")
	fs.StringVar(&cfg.Dataset, "dataset", cfg.Dataset, "dataset file; empty serves the bundled dataset")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "database path; empty disables persistence")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	return fs
}

// flagOverrides are the serve flags given on the command line. They win over
// the settings file and the environment on every SIGHUP reload too.
type flagOverrides struct {
	set    map[string]bool
	values Config
}

func flagOverridesFrom(fs *flag.FlagSet, parsed Config) flagOverrides {
	o := flagOverrides{set: make(map[string]bool), values: parsed}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o
}

func (o flagOverrides) apply(cfg Config) Config {
	if o.set["listen-addr"] {
		cfg.ListenAddr = o.values.ListenAddr
	}
	if o.set["dataset"] {
		cfg.Dataset = o.values.Dataset
	}
	if o.set["db-path"] {
		cfg.DBPath = o.values.DBPath
	}
	if o.set["log-level"] {
		cfg.LogLevel = o.values.LogLevel
	}
	return cfg
}

func serve(ctx context.Context, cfg Config, overrides flagOverrides) error {
	rt, err := openRuntime(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger
	go rt.app.SweepSessions(ctx, sessionSweepInterval, sessionIdleTimeout)

	var reloader *reload.Reloader
	if cfg.ReloadSchedule != "" {
		reloader, err = reload.New(cfg.ReloadSchedule, rt.app, logger)
		if err != nil {
			return err
		}
		if err := reloader.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = reloader.Stop() }()
	}

	mcpServer := mcp.NewPathmapServer(mcp.PathmapServerDeps{App: rt.app, Logger: logger})
	panelServer := panel.NewPanelServer(panel.PanelDeps{App: rt.app, Reloader: reloader, Logger: logger})
	panelHandler := panelServer.Handler()

	swapper := newHandlerSwapper(panelOrDisabled(cfg.Panel, panelHandler))
	sse := mcpServer.SSEHandler(cfg.BaseURL)

	mux := http.NewServeMux()
	mux.Handle("/sse", sse)
	mux.Handle("/message", sse)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("/", swapper)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := writePidfile(); err != nil {
		logger.Warn("write pidfile", slog.String("error", err.Error()))
	} else {
		defer os.Remove(pidPath())
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pathmap listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("base_url", cfg.BaseURL),
			slog.Bool("panel", cfg.Panel),
			slog.String("version", version))
		errCh <- srv.ListenAndServe()
	}()

	current := cfg
	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case <-hup:
			next := overrides.apply(loadConfig())
			current = applyConfig(ctx, rt, swapper, panelHandler, current, next)

		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

// applyConfig applies the hot-reloadable part of next and returns the
// configuration now in effect. Fields that need a restart keep their old
// values.
func applyConfig(ctx context.Context, rt *runtime, swapper *handlerSwapper, panelHandler http.Handler, old, next Config) Config {
	d := diffConfigs(old, next)
	logger := rt.logger
	applied := old

	if d.LogLevelChanged {
		rt.level.Set(logging.ParseLevel(next.LogLevel))
		applied.LogLevel = next.LogLevel
		logger.Info("log level changed", slog.String("level", next.LogLevel))
	}
	if d.PanelChanged {
		swapper.Swap(panelOrDisabled(next.Panel, panelHandler))
		applied.Panel = next.Panel
		logger.Info("panel toggled", slog.Bool("enabled", next.Panel))
	}
	if d.DatasetChanged {
		if _, err := rt.app.Load(ctx, next.Dataset); err != nil {
			logger.Error("dataset switch failed, keeping previous", slog.String("error", err.Error()))
		} else {
			applied.Dataset = next.Dataset
		}
	}
	for _, field := range d.RestartNeeded {
		logger.Warn("config change requires restart", slog.String("field", field))
	}
	return applied
}

func panelOrDisabled(enabled bool, h http.Handler) http.Handler {
	if enabled {
		return h
	}
	return http.NotFoundHandler()
}

func writePidfile() error {
	if err := os.MkdirAll(pathmapDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}
