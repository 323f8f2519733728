package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rendis/ticketflow/internal/actions"
	"github.com/rendis/ticketflow/internal/engine"
	"github.com/rendis/ticketflow/internal/logging"
	"github.com/rendis/ticketflow/internal/notify"
	"github.com/rendis/ticketflow/internal/store"
	"github.com/rendis/ticketflow/internal/streaming"
)

// app is the wired process: store, collaborators, handlers and executor.
type app struct {
	cfg      Config
	logger   *slog.Logger
	store    *store.LibSQLStore
	hub      streaming.Hub
	registry *actions.Registry
	executor *engine.Executor
	closers  []func() error
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	// stdout belongs to the MCP transport and to `run` output.
	logger := logging.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}

	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	if cfg.RedisURL != "" {
		hub, err := streaming.DialRedisHub(ctx, cfg.RedisURL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.hub = hub
		a.closers = append(a.closers, hub.Close)
	} else {
		a.hub = streaming.NewMemoryHub()
	}

	httpTimeout := duration(cfg.HTTPTimeout, 30*time.Second)
	deps := actions.Deps{
		Store:   st,
		Chat:    notify.NewTeamsNotifier(cfg.TeamsWebhooks, &http.Client{Timeout: httpTimeout}),
		Hub:     a.hub,
		Starter: loggingStarter(logger),
		HTTP: actions.HTTPConfig{
			Timeout:         httpTimeout,
			MaxResponseBody: cfg.MaxResponseBody,
		},
		MaxWait: duration(cfg.MaxWait, 0),
		Logger:  logger,
	}
	if cfg.SMTPAddr != "" {
		deps.Mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	}

	a.registry = actions.NewRegistry()
	if err := actions.RegisterBuiltins(a.registry, deps); err != nil {
		a.Close()
		return nil, fmt.Errorf("register handlers: %w", err)
	}
	a.executor = engine.NewExecutor(a.registry, engine.ExecutorConfig{
		PoolSize: cfg.PoolSize,
		Logger:   logger,
	})
	a.closers = append(a.closers, func() error {
		a.executor.Shutdown()
		return nil
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func openStore(ctx context.Context, dbPath string) (*store.LibSQLStore, error) {
	path := strings.TrimPrefix(dbPath, "file:")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

// loggingStarter records nested-workflow requests. Starting them belongs to
// the upstream scheduler, which consumes these log lines.
func loggingStarter(logger *slog.Logger) actions.WorkflowStarter {
	return actions.WorkflowStarterFunc(func(ctx context.Context, req actions.WorkflowStart) error {
		logger.InfoContext(ctx, "nested workflow requested",
			"child_workflow_id", req.WorkflowID,
			"parent_instance_id", req.ParentInstanceID,
		)
		return nil
	})
}
