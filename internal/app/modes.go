package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/executor"
	"github.com/Nostem/Auto-Trading-Bot/internal/intelligence"
	"github.com/Nostem/Auto-Trading-Bot/internal/metrics"
	"github.com/Nostem/Auto-Trading-Bot/internal/risk"
	"github.com/Nostem/Auto-Trading-Bot/internal/scanner"
	"github.com/Nostem/Auto-Trading-Bot/internal/scoring"
	"github.com/Nostem/Auto-Trading-Bot/internal/server"
	"github.com/Nostem/Auto-Trading-Bot/internal/server/handler"
	"github.com/Nostem/Auto-Trading-Bot/internal/server/ws"
)

type taskName string

const (
	taskScan     taskName = "scan"
	taskMonitor  taskName = "monitor"
	taskReflect  taskName = "reflect"
	taskAdvisory taskName = "advisory"
	taskMaintain taskName = "maintain"
	taskArchive  taskName = "archive"
	taskServe    taskName = "serve"
)

// tradesPerHour caps entries opened across all strategies in any sliding
// hour, independent of per-signal risk checks.
const tradesPerHour = 30

// runtime bundles the services built on top of the wired dependencies.
type runtime struct {
	deps     *Dependencies
	registry *scanner.Registry
	gate     *risk.Gate
	engine   *executor.Engine
	worker   *intelligence.Worker
	analyst  *intelligence.Analyst
	listener *intelligence.Listener // nil when the news feed is disabled
	hub      *ws.Hub
	srv      *server.Server // nil when the server is disabled
}

func (a *App) buildRuntime(deps *Dependencies) *runtime {
	cfg := a.cfg
	logger := a.logger

	registry := scanner.NewRegistry(logger)
	if cfg.Scanner.Bond.Enabled {
		registry.Register(scanner.NewBondScanner(cfg.Scanner.Bond, cfg.Scanner.MaxMarkets, logger))
	}
	if cfg.Scanner.MarketMaking.Enabled {
		registry.Register(scanner.NewMMScanner(cfg.Scanner.MarketMaking, cfg.Scanner.MaxMarkets, logger))
	}
	if cfg.Scanner.BTC.Enabled {
		registry.Register(scanner.NewBTCScanner(cfg.Scanner.BTC, deps.Spot, cfg.Scanner.MaxMarkets, logger))
	}
	if cfg.News.Enabled {
		registry.Register(scanner.NewNewsScanner(deps.SignalBus, cfg.Scanner.MaxMarkets, logger))
	}

	analyst := intelligence.NewAnalyst(deps.Reasoner, deps.TradeStore, deps.ReflectionStore,
		deps.RecommendationStore, deps.SettingStore, logger)
	worker := intelligence.NewWorker(deps.Reasoner, deps.ReflectionStore, analyst,
		cfg.Scheduler.ReflectionBuffer, logger)

	engine := executor.New(executor.Config{
		Exchange:       deps.Exchange,
		Store:          deps.ExecutionStore,
		Trades:         deps.TradeStore,
		Positions:      deps.PositionStore,
		Bus:            deps.SignalBus,
		Notifier:       deps.Notifier,
		Reflections:    worker,
		PaperMode:      cfg.Trading.PaperMode,
		FeePerContract: cfg.Trading.FeePerContract,
		Logger:         logger,
	})

	rt := &runtime{
		deps:     deps,
		registry: registry,
		gate:     risk.New(deps.TradeStore, deps.Settings, logger),
		engine:   engine,
		worker:   worker,
		analyst:  analyst,
	}

	if cfg.News.Enabled && len(cfg.News.Feeds) > 0 {
		rt.listener = intelligence.NewListener(cfg.News.Feeds, deps.SignalBus, deps.Reasoner,
			cfg.News.PollInterval.Duration, cfg.News.MaxPerPoll, logger)
	}

	if cfg.Server.Enabled {
		rt.hub = ws.NewHub(deps.SignalBus, cfg.Mode, logger)
		rt.srv = server.NewServer(
			server.Config{Port: cfg.Server.Port, CORSOrigins: cfg.Server.CORSOrigins},
			server.Handlers{
				Health:          handler.NewHealthHandler(deps.Postgres.Pool(), deps.Redis, logger),
				Status:          handler.NewStatusHandler(cfg.Mode, time.Now().UTC(), deps.Settings, deps.PositionStore, logger),
				Trades:          handler.NewTradeHandler(deps.TradeStore, logger),
				Positions:       handler.NewPositionHandler(deps.PositionStore, logger),
				Reflections:     handler.NewReflectionHandler(deps.ReflectionStore, logger),
				Recommendations: handler.NewRecommendationHandler(deps.RecommendationStore, logger),
				Controls:        handler.NewControlHandler(deps.SettingStore, logger),
			},
			rt.hub, logger)
	}
	return rt
}

// runTasks starts the named task loops and blocks until the context is
// cancelled or a loop fails. Resting market-making quotes are cancelled on
// the way out so no orphan orders survive a restart.
func (a *App) runTasks(ctx context.Context, rt *runtime, tasks ...taskName) error {
	g, ctx := errgroup.WithContext(ctx)

	cancelQuotes := false
	for _, t := range tasks {
		switch t {
		case taskScan:
			cancelQuotes = true
			g.Go(func() error {
				return a.every(ctx, rt, taskScan, a.cfg.Scheduler.ScanInterval.Duration, a.scanCycle(rt))
			})
		case taskMonitor:
			g.Go(func() error {
				return a.every(ctx, rt, taskMonitor, a.cfg.Scheduler.MonitorInterval.Duration, a.monitorCycle(rt))
			})
		case taskReflect:
			g.Go(func() error { return rt.worker.Run(ctx) })
		case taskAdvisory:
			if rt.listener != nil {
				g.Go(func() error { return rt.listener.Run(ctx) })
			}
		case taskMaintain:
			g.Go(func() error {
				return a.every(ctx, rt, taskMaintain, time.Hour, a.maintainCycle(rt))
			})
		case taskArchive:
			if rt.deps.Archiver != nil {
				g.Go(func() error {
					return a.every(ctx, rt, taskArchive, a.cfg.Scheduler.ArchiveInterval.Duration, func(ctx context.Context) error {
						return rt.deps.Archiver.Archive(ctx)
					})
				})
			}
		case taskServe:
			if rt.srv != nil {
				g.Go(func() error { return rt.hub.Run(ctx) })
				g.Go(func() error { return rt.srv.Start() })
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					return rt.srv.Shutdown(shutdownCtx)
				})
			}
		}
	}

	err := g.Wait()

	if cancelQuotes {
		cancelCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if cerr := rt.engine.CancelQuoteOrders(cancelCtx); cerr != nil {
			a.logger.Error("quote cancellation on shutdown failed", "error", cerr)
		}
	}
	return err
}

// every runs fn on the interval, each invocation behind the task's
// distributed lock. A held lock or a failed cycle skips to the next tick;
// only context cancellation stops the loop.
func (a *App) every(ctx context.Context, rt *runtime, name taskName, interval time.Duration, fn func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.runLocked(ctx, rt, name, fn)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) runLocked(ctx context.Context, rt *runtime, name taskName, fn func(context.Context) error) {
	unlock, err := rt.deps.LockManager.Acquire(ctx, "task:"+string(name), a.cfg.Scheduler.LockTTL.Duration)
	if errors.Is(err, domain.ErrLockHeld) {
		a.logger.DebugContext(ctx, "previous invocation still running, skipping", "task", name)
		return
	}
	if err != nil {
		a.logger.WarnContext(ctx, "task lock acquisition failed", "task", name, "error", err)
		return
	}
	defer unlock()

	start := time.Now()
	if err := fn(ctx); err != nil {
		a.logger.ErrorContext(ctx, "task cycle failed", "task", name, "error", err)
	}
	metrics.CycleDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())
}

// scanCycle is one full pass of the trading loop: scan, score, gate,
// execute.
func (a *App) scanCycle(rt *runtime) func(context.Context) error {
	return func(ctx context.Context) error {
		snap, err := rt.deps.Settings.Load(ctx)
		if err != nil {
			return err
		}
		metrics.Bankroll.Set(snap.Bankroll())

		if !snap.BotEnabled() {
			a.logger.DebugContext(ctx, "trading disabled, skipping scan cycle")
			return nil
		}

		open, err := rt.deps.PositionStore.ListOpen(ctx)
		if err != nil {
			return err
		}
		held := make(map[string]bool, len(open))
		for _, p := range open {
			held[p.Ticker] = true
		}

		candidates := rt.registry.ScanAll(ctx, rt.deps.Exchange, held, snap)
		ranked := scoring.Rank(candidates, snap.ScoreHorizonHours())
		picks := scoring.FilterMinimumEdge(ranked, snap.MinEdge())
		if len(picks) == 0 {
			return nil
		}
		a.logger.InfoContext(ctx, "scan cycle produced candidates",
			"scanned", len(candidates), "actionable", len(picks))

		for _, sig := range picks {
			if held[sig.Ticker] {
				continue
			}
			decision := rt.gate.CheckTrade(ctx, sig, snap.Bankroll(), open, snap)
			if !decision.Approved {
				continue
			}

			allowed, err := rt.deps.RateLimiter.Allow(ctx, "trades:open", tradesPerHour, time.Hour)
			if err != nil {
				a.logger.WarnContext(ctx, "trade throughput check failed, skipping entry",
					"ticker", sig.Ticker, "error", err)
				continue
			}
			if !allowed {
				a.logger.WarnContext(ctx, "hourly trade cap reached, deferring remaining entries")
				break
			}

			if rt.engine.Execute(ctx, decision, sig) {
				held[sig.Ticker] = true
				open = append(open, domain.Position{
					Ticker:     sig.Ticker,
					Strategy:   sig.Strategy,
					Category:   sig.Category,
					Side:       sig.Side,
					Size:       decision.RecommendedSize,
					EntryPrice: sig.EntryPrice,
					OpenedAt:   time.Now().UTC(),
				})
			}
		}
		return nil
	}
}

func (a *App) monitorCycle(rt *runtime) func(context.Context) error {
	return func(ctx context.Context) error {
		snap, err := rt.deps.Settings.Load(ctx)
		if err != nil {
			return err
		}
		metrics.Bankroll.Set(snap.Bankroll())
		return rt.engine.MonitorPositions(ctx, snap)
	}
}

// maintainCycle runs the daily maintenance at the configured UTC hour:
// recommendation expiry every day, the weekly report on its configured
// weekday. A settings marker makes the daily work idempotent across
// restarts and instances.
func (a *App) maintainCycle(rt *runtime) func(context.Context) error {
	return func(ctx context.Context) error {
		now := time.Now().UTC()
		if now.Hour() != a.cfg.Scheduler.MaintenanceHour {
			return nil
		}
		today := now.Format("2006-01-02")
		last, err := rt.deps.SettingStore.Get(ctx, "maintenance_last_run")
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if last == today {
			return nil
		}

		if err := rt.analyst.ExpireStale(ctx); err != nil {
			a.logger.ErrorContext(ctx, "recommendation expiry failed", "error", err)
		}
		if strings.EqualFold(now.Weekday().String(), a.cfg.Scheduler.WeeklyReportDay) {
			if err := rt.analyst.WeeklyReport(ctx); err != nil {
				a.logger.ErrorContext(ctx, "weekly report failed", "error", err)
			}
		}
		return rt.deps.SettingStore.Put(ctx, "maintenance_last_run", today)
	}
}
