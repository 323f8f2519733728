package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rendis/ticketflow/internal/engine"
	"github.com/rendis/ticketflow/pkg/mcp"
	"github.com/rendis/ticketflow/pkg/schema"
)

// runFile is the input of `ticketflow run`.
type runFile struct {
	Context        *schema.ExecutionContext `json:"context"`
	Actions        []*schema.Action         `json:"actions"`
	StopAtBoundary bool                     `json:"stop_at_boundary,omitempty"`
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, loadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := mcp.NewTicketflowServer(mcp.TicketflowServerDeps{
		Executor: a.executor,
		Registry: a.registry,
		Hub:      a.hub,
		Logger:   a.logger,
	})
	a.logger.Info("ticketflow serving MCP over stdio", "version", version, "db_path", a.cfg.DBPath)
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		a.logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	stopAtBoundary := fs.Bool("stop-at-boundary", false, "skip actions after the first stop_workflow")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ticketflow run [-stop-at-boundary] <file.json>")
		os.Exit(2)
	}

	in, err := readRunFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, loadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	list := in.Actions
	if in.StopAtBoundary || *stopAtBoundary {
		list = engine.SliceAtStop(list)
	}
	result, err := a.executor.RunPooled(ctx, list, in.Context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !result.Success {
		a.Close()
		os.Exit(3)
	}
}

func readRunFile(path string) (*runFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var in runFile
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &in, nil
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	cfg := loadConfig()
	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	fmt.Printf("Database %s is up to date\n", cfg.DBPath)
}
