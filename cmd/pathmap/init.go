package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rendis/pathmap/internal/reload"
)

// runInit writes ~/.pathmap/settings.json from flags, then asks a running
// server to pick it up or starts one.
func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	listenAddr := fs.String("listen-addr", ":4200", "TCP listen address")
	baseURL := fs.String("base-url", "", "public base URL (derived from listen-addr if empty)")
	dbPath := fs.String("db-path", "", "database path (default: ~/.pathmap/pathmap.db)")
	datasetPath := fs.String("dataset", "", "dataset file (.json, .yaml); empty serves the bundled dataset")
	schedule := fs.String("reload-schedule", "", `cron schedule for re-reading the dataset, e.g. "@every 5m"`)
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	panelFlag := fs.Bool("panel", true, "enable web panel")
	noServe := fs.Bool("no-serve", false, "write settings only")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *schedule != "" {
		if _, err := reload.Parser.Parse(*schedule); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid reload schedule %q: %v\n", *schedule, err)
			os.Exit(1)
		}
	}

	dir := pathmapDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create %s: %v\n", dir, err)
		os.Exit(1)
	}

	cfg := Config{
		ListenAddr:     *listenAddr,
		BaseURL:        *baseURL,
		Dataset:        *datasetPath,
		ReloadSchedule: *schedule,
		LogLevel:       *logLevel,
		Panel:          *panelFlag,
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	} else {
		cfg.DBPath = filepath.Join(dir, "pathmap.db")
	}
	if cfg.Dataset != "" {
		if abs, err := filepath.Abs(cfg.Dataset); err == nil {
			cfg.Dataset = abs
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	path := settingsPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot write %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("Config written to %s\n", path)

	if *noServe {
		return
	}
	// Signal running server to reload, or start a new one.
	if signalRunningServer() {
		return
	}
	runServe(nil)
}

// signalRunningServer sends SIGHUP to a running pathmap server (via pidfile).
// Returns true if the server was signaled (caller should NOT start a new one).
func signalRunningServer() bool {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Check if process is alive.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return false
	}
	fmt.Printf("Signaled running server (PID %d) to reload configuration\n", pid)
	return true
}
