package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytrack/internal/alert"
	s3blob "github.com/alanyoungcy/polytrack/internal/blob/s3"
	"github.com/alanyoungcy/polytrack/internal/cache"
	"github.com/alanyoungcy/polytrack/internal/config"
	"github.com/alanyoungcy/polytrack/internal/domain"
	"github.com/alanyoungcy/polytrack/internal/notify"
	"github.com/alanyoungcy/polytrack/internal/platform/polymarket"
	"github.com/alanyoungcy/polytrack/internal/resilience"
	"github.com/alanyoungcy/polytrack/internal/resolver"
	"github.com/alanyoungcy/polytrack/internal/store"
	"github.com/alanyoungcy/polytrack/internal/tracker"
)

// Dependencies bundles everything the application loop needs to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Tracker *tracker.Tracker
	Alerts  *alert.Manager
	Cache   *cache.Cache
	Data    *polymarket.DataClient
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Resilient upstream client ---
	limiter := resilience.NewRateLimiter(cfg.Client.RequestsPerSecond, cfg.Client.Burst)
	breakers := resilience.NewRegistry(
		cfg.Client.BreakerThreshold,
		cfg.Client.BreakerTimeout.Duration,
		func(group string, from, to resilience.BreakerState) {
			logger.Warn("circuit breaker state change",
				slog.String("group", group),
				slog.String("from", string(from)),
				slog.String("to", string(to)),
			)
		},
	)
	executor := polymarket.NewExecutor(limiter, breakers, polymarket.ExecutorConfig{
		MaxRetries:     cfg.Client.MaxRetries,
		BaseBackoff:    cfg.Client.BaseBackoff.Duration,
		MaxBackoff:     cfg.Client.MaxBackoff.Duration,
		RequestTimeout: cfg.Client.RequestTimeout.Duration,
		AuditTrailSize: cfg.Client.AuditTrailSize,
	}, logger)

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, executor)
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, executor)
	data := polymarket.NewDataClient(cfg.Polymarket.DataHost, executor)

	// --- Market resolution through the shared cache ---
	marketCache := cache.New()
	res := resolver.New(gamma, marketCache, resolver.Config{
		MinScore:       cfg.Resolver.MinScore,
		MaxSuggestions: cfg.Resolver.MaxSuggestions,
		ListingLimit:   cfg.Resolver.ListingLimit,
		MarketTTL:      cfg.Client.MarketCacheTTL.Duration,
		ListingTTL:     cfg.Client.ListingCacheTTL.Duration,
	}, logger)

	// --- Optional S3 snapshot archival ---
	var archiver domain.SnapshotArchiver
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s3Client.Health(healthCtx); err != nil {
			logger.Warn("s3 archive unreachable, snapshots stay local only",
				slog.String("error", err.Error()),
			)
		}
		cancel()
		archiver = s3blob.NewArchiver(s3Client)
	}

	// --- Local persistence ---
	posStore, err := store.NewPositionStore(cfg.Tracker.DataDir, archiver, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: position store: %w", err)
	}
	alertStore, err := store.NewAlertStore(cfg.Tracker.DataDir, archiver, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: alert store: %w", err)
	}

	positions, err := posStore.Load(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load positions: %w", err)
	}
	alertHistory, err := alertStore.Load(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load alert history: %w", err)
	}

	// --- Alert delivery ---
	senders := make([]notify.Sender, 0, len(cfg.Webhooks.URLs)+2)
	for _, u := range cfg.Webhooks.URLs {
		senders = append(senders, notify.NewWebhookSender(u))
	}
	if cfg.Webhooks.DiscordURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Webhooks.DiscordURL))
	}
	if cfg.Webhooks.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Webhooks.TelegramToken, cfg.Webhooks.TelegramChatID))
	}
	dispatcher := notify.NewDispatcher(senders, cfg.Webhooks.Timeout.Duration, logger)

	alerts := alert.NewManager(alert.ManagerConfig{
		DedupWindow: cfg.Alerts.DedupWindow.Duration,
		HistoryCap:  cfg.Alerts.HistoryCap,
	}, alertStore, dispatcher, alertHistory, logger)

	// --- Position update engine ---
	rules := alert.RuleConfig{
		PriceMovePercent:    cfg.Alerts.PriceMovePercent,
		PriceMoveHighFactor: cfg.Alerts.PriceMoveHighFactor,
		TakeProfitPercent:   cfg.Alerts.TakeProfitPercent,
		StopLossPercent:     cfg.Alerts.StopLossPercent,
		TimeDecayDays:       cfg.Alerts.TimeDecayDays,
		LowLiquidity:        cfg.Alerts.LowLiquidity,
	}
	history := tracker.NewHistory(cfg.Tracker.HistoryMaxEntries, cfg.Tracker.HistoryMaxAge.Duration)
	trk := tracker.New(res, clob, history, alerts, rules, posStore, tracker.Config{
		BatchConcurrency: cfg.Tracker.BatchConcurrency,
		MoveLookback:     cfg.Tracker.HistoryMaxAge.Duration,
	}, positions, logger)

	logger.Info("dependencies wired",
		slog.Int("positions", len(positions)),
		slog.Int("alert_history", len(alertHistory)),
		slog.Int("alert_channels", len(senders)),
		slog.Bool("archive", cfg.Archive.Enabled),
	)

	return &Dependencies{
		Tracker: trk,
		Alerts:  alerts,
		Cache:   marketCache,
		Data:    data,
	}, cleanup, nil
}
