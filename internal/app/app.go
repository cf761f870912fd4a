// Package app owns the application lifecycle: it wires the stores, caches,
// platform clients, and services together and runs the task loops for the
// configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Nostem/Auto-Trading-Bot/internal/config"
)

// App is the root application object. It owns the configuration, logger,
// and the cleanup stack invoked in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With("component", "app"),
	}
}

// Run wires all dependencies, starts the task loops for the configured
// mode, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		"mode", a.cfg.Mode,
		"paper_mode", a.cfg.Trading.PaperMode,
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	rt := a.buildRuntime(deps)

	switch strings.ToLower(a.cfg.Mode) {
	case "trade":
		return a.runTasks(ctx, rt, taskScan, taskMonitor, taskReflect, taskAdvisory, taskMaintain, taskArchive)
	case "monitor":
		return a.runTasks(ctx, rt, taskMonitor, taskReflect)
	case "server":
		return a.runTasks(ctx, rt, taskServe)
	case "full":
		return a.runTasks(ctx, rt, taskScan, taskMonitor, taskReflect, taskAdvisory, taskMaintain, taskArchive, taskServe)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. Safe to
// call more than once.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
