// Package app provides the top-level application lifecycle management for the
// position tracker. It wires together all dependencies (upstream clients,
// resolver, stores, alerting, and the update engine) and runs the poll loop
// plus background workers until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytrack/internal/config"
	"github.com/alanyoungcy/polytrack/internal/domain"
	"github.com/alanyoungcy/polytrack/internal/feed"
	"github.com/alanyoungcy/polytrack/internal/monitor"
	"github.com/alanyoungcy/polytrack/internal/tracker"
)

// housekeepInterval paces cache sweeps and dedup purges.
const housekeepInterval = 5 * time.Minute

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, optionally imports
// positions from the configured wallet, starts the poll loop and background
// workers, and blocks until the context is cancelled. On return the in-memory
// state is flushed to disk and all registered cleanup functions run.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Duration("poll_interval", a.cfg.Tracker.PollInterval.Duration),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	defer a.Close()

	if a.cfg.Tracker.Wallet != "" {
		if err := a.importWallet(ctx, deps); err != nil {
			a.logger.WarnContext(ctx, "wallet import failed, continuing with stored positions",
				slog.String("wallet", a.cfg.Tracker.Wallet),
				slog.String("error", err.Error()),
			)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.pollLoop(gctx, deps.Tracker)
	})

	g.Go(func() error {
		return a.housekeep(gctx, deps)
	})

	mem := monitor.NewMemory(monitor.Config{
		SampleInterval: a.cfg.Monitor.SampleInterval.Duration,
		WarnMB:         a.cfg.Monitor.WarnMB,
		CriticalMB:     a.cfg.Monitor.CriticalMB,
	}, a.logger)
	g.Go(func() error {
		return mem.Run(gctx)
	})

	if a.cfg.Feed.Enabled {
		wsFeed := feed.NewPolymarketWSFeed(
			a.cfg.Polymarket.WsHost,
			func() []string { return activeTokenIDs(deps.Tracker) },
			deps.Tracker.RecordLivePrice,
			a.logger,
		)
		g.Go(func() error {
			return wsFeed.Run(gctx)
		})
	}

	err = g.Wait()

	// Flush with a fresh context; the run context is already cancelled.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ferr := deps.Tracker.Flush(flushCtx); ferr != nil {
		a.logger.Error("final position flush failed", slog.String("error", ferr.Error()))
	}
	if ferr := deps.Alerts.Flush(flushCtx); ferr != nil {
		a.logger.Error("final alert flush failed", slog.String("error", ferr.Error()))
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pollLoop refreshes all active positions immediately and then on every tick.
func (a *App) pollLoop(ctx context.Context, trk *tracker.Tracker) error {
	runOnce := func() {
		if _, err := trk.UpdateAll(ctx); err != nil {
			a.logger.ErrorContext(ctx, "update cycle failed", slog.String("error", err.Error()))
		}
	}

	runOnce()
	ticker := time.NewTicker(a.cfg.Tracker.PollInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runOnce()
		}
	}
}

// housekeep periodically sweeps stale cache entries and purges expired dedup
// state so neither grows without bound.
func (a *App) housekeep(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(housekeepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept := deps.Cache.Sweep(2 * a.cfg.Client.ListingCacheTTL.Duration)
			purged := deps.Alerts.Purge()
			if swept > 0 || purged > 0 {
				a.logger.DebugContext(ctx, "housekeeping pass",
					slog.Int("cache_swept", swept),
					slog.Int("dedup_purged", purged),
				)
			}
		}
	}
}

// importWallet seeds the tracker from the configured wallet's current
// Polymarket positions, skipping markets that are already tracked.
func (a *App) importWallet(ctx context.Context, deps *Dependencies) error {
	walletPositions, err := deps.Data.ListWalletPositions(ctx, a.cfg.Tracker.Wallet)
	if err != nil {
		return err
	}

	tracked := make(map[string]bool)
	for _, p := range deps.Tracker.Positions() {
		tracked[p.MarketKey()] = true
		if p.MarketRef != "" {
			tracked[p.MarketRef] = true
		}
	}

	imported := 0
	for _, wp := range walletPositions {
		size := float64(wp.Size)
		avgPrice := float64(wp.AvgPrice)
		if size <= 0 || avgPrice <= 0 {
			continue
		}
		ref := wp.Slug
		if ref == "" {
			ref = wp.ConditionID
		}
		if ref == "" || tracked[ref] || tracked[wp.ConditionID] {
			continue
		}

		np := tracker.NewPosition{
			MarketRef:  ref,
			Side:       domain.SideYes,
			Invested:   float64(wp.InitialValue),
			EntryPrice: avgPrice,
		}
		if wp.Outcome == "No" {
			np.Side = domain.SideNo
			// Wallet positions quote the held outcome; stored entry prices
			// are YES-denominated.
			np.EntryPrice = 1 - avgPrice
		}
		if np.Invested <= 0 {
			np.Invested = size * avgPrice
		}

		if _, err := deps.Tracker.AddPosition(ctx, np); err != nil {
			a.logger.WarnContext(ctx, "wallet import: skipping position",
				slog.String("market_ref", ref),
				slog.String("error", err.Error()),
			)
			continue
		}
		tracked[ref] = true
		imported++
	}

	a.logger.InfoContext(ctx, "wallet import complete",
		slog.String("wallet", a.cfg.Tracker.Wallet),
		slog.Int("upstream_positions", len(walletPositions)),
		slog.Int("imported", imported),
	)
	return nil
}

// activeTokenIDs collects the CLOB token IDs of tracked active positions for
// the live feed subscription.
func activeTokenIDs(trk *tracker.Tracker) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range trk.Positions() {
		if p.Status != domain.PositionStatusActive || p.TokenID == "" || seen[p.TokenID] {
			continue
		}
		seen[p.TokenID] = true
		ids = append(ids, p.TokenID)
	}
	return ids
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
