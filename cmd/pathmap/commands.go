package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rendis/pathmap/internal/app"
	"github.com/rendis/pathmap/internal/dataset"
	"github.com/rendis/pathmap/internal/diagram"
	"github.com/rendis/pathmap/internal/logging"
	"github.com/rendis/pathmap/internal/store"
	"github.com/rendis/pathmap/internal/validation"
	"github.com/rendis/pathmap/pkg/mcp"
	"github.com/rendis/pathmap/pkg/schema"
)

// runMCP serves the MCP tools on stdio, or on SSE with -transport sse.
// Logs go to stderr so they never mix with the stdio protocol stream.
func runMCP(args []string) {
	cfg := loadConfig()

	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	transport := fs.String("transport", "stdio", "stdio or sse")
	fs.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "listen address for -transport sse")
	fs.StringVar(&cfg.Dataset, "dataset", cfg.Dataset, "dataset file; empty serves the bundled dataset")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "database path; empty disables persistence")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg, os.Stderr)
	if err != nil {
		fatal(err)
	}
	defer rt.Close()
	go rt.app.SweepSessions(ctx, sessionSweepInterval, sessionIdleTimeout)

	srv := mcp.NewPathmapServer(mcp.PathmapServerDeps{App: rt.app, Logger: rt.logger})
	switch *transport {
	case "stdio":
		err = srv.Serve(ctx)
	case "sse":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost" + cfg.ListenAddr
		}
		err = srv.ServeSSE(ctx, cfg.ListenAddr, baseURL)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	default:
		err = fmt.Errorf("unknown transport %q", *transport)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

// runRender writes one diagram of a dataset without starting a server.
func runRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	format := fs.String("format", "ascii", "ascii, mermaid, svg, png or json")
	selected := fs.String("selected", "", "node id to highlight")
	datasetPath := fs.String("dataset", "", "dataset file; empty renders the bundled dataset")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	f, err := diagram.ParseFormat(*format)
	if err != nil {
		fatal(err)
	}
	ctx := context.Background()
	a, err := app.New(ctx, app.Options{
		Source: *datasetPath,
		Logger: logging.New(io.Discard, "error"),
	})
	if err != nil {
		fatal(err)
	}
	snap := a.Snapshot()
	if *selected != "" && !snap.Layout.Has(*selected) {
		fatal(schema.NewErrorf(schema.ErrCodeNotFound, "node %q not found", *selected).WithNode(*selected))
	}

	data, err := diagram.Render(ctx, snap.Layout, f, diagram.Options{Selected: *selected})
	if err != nil {
		fatal(err)
	}
	if *out == "" {
		_, _ = os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%s, %d bytes)\n", *out, f, len(data))
}

// runValidate checks a dataset file and prints every issue. Exits 1 when
// the dataset has errors.
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pathmap validate <file>")
		os.Exit(2)
	}

	result, ds, err := validateFile(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	printIssues(os.Stdout, result)
	if !result.Valid() {
		os.Exit(1)
	}
	fmt.Printf("ok: %d nodes, %d edges, %d details\n", len(ds.Nodes), len(ds.Edges), len(ds.Details))
}

// runImport validates a dataset file and stores it as the next version of
// its name.
func runImport(args []string) {
	cfg := loadConfig()

	fs := flag.NewFlagSet("import", flag.ExitOnError)
	name := fs.String("name", "", "dataset name (default: file name without extension)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "database path")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pathmap import [-name NAME] <file>")
		os.Exit(2)
	}
	if cfg.DBPath == "" {
		fatal(errors.New("import needs a database; set db_path or -db-path"))
	}

	path := fs.Arg(0)
	result, ds, err := validateFile(path)
	if err != nil {
		fatal(err)
	}
	printIssues(os.Stderr, result)
	if err := result.ToError(); err != nil {
		fatal(err)
	}

	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	doc, err := json.Marshal(ds)
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	s, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	rec := &store.DatasetRecord{
		Name:      *name,
		Title:     ds.Title,
		Document:  doc,
		NodeCount: len(ds.Nodes),
		EdgeCount: len(ds.Edges),
	}
	if err := s.SaveDataset(ctx, rec); err != nil {
		fatal(err)
	}
	fmt.Printf("imported %s version %d (%s)\n", rec.Name, rec.Version, rec.Checksum)
}

func validateFile(path string) (*schema.ValidationResult, *schema.Dataset, error) {
	ds, _, err := dataset.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	v, err := validation.NewDatasetValidator()
	if err != nil {
		return nil, nil, err
	}
	return v.Validate(ds), ds, nil
}

func printIssues(w io.Writer, result *schema.ValidationResult) {
	for _, issue := range result.Errors {
		fmt.Fprintf(w, "error   %s: %s (%s)\n", issue.Path, issue.Message, issue.Code)
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(w, "warning %s: %s (%s)\n", issue.Path, issue.Message, issue.Code)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
