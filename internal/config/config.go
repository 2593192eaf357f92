// Package config defines the top-level configuration for the position
// tracker and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYTRACK_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Client     ClientConfig     `toml:"client"`
	Resolver   ResolverConfig   `toml:"resolver"`
	Tracker    TrackerConfig    `toml:"tracker"`
	Alerts     AlertsConfig     `toml:"alerts"`
	Webhooks   WebhooksConfig   `toml:"webhooks"`
	Archive    ArchiveConfig    `toml:"archive"`
	Feed       FeedConfig       `toml:"feed"`
	Monitor    MonitorConfig    `toml:"monitor"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
	DataHost  string `toml:"data_host"`
	WsHost    string `toml:"ws_host"`
}

// ClientConfig tunes the resilient upstream client: request pacing, circuit
// breaking, retries, and caching.
type ClientConfig struct {
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	BreakerThreshold  int      `toml:"breaker_threshold"`
	BreakerTimeout    duration `toml:"breaker_timeout"`
	MaxRetries        int      `toml:"max_retries"`
	BaseBackoff       duration `toml:"base_backoff"`
	MaxBackoff        duration `toml:"max_backoff"`
	RequestTimeout    duration `toml:"request_timeout"`
	MarketCacheTTL    duration `toml:"market_cache_ttl"`
	ListingCacheTTL   duration `toml:"listing_cache_ttl"`
	AuditTrailSize    int      `toml:"audit_trail_size"`
}

// ResolverConfig tunes fuzzy market resolution.
type ResolverConfig struct {
	MinScore       int `toml:"min_score"`
	MaxSuggestions int `toml:"max_suggestions"`
	ListingLimit   int `toml:"listing_limit"`
}

// TrackerConfig tunes the position update engine.
type TrackerConfig struct {
	PollInterval      duration `toml:"poll_interval"`
	BatchConcurrency  int      `toml:"batch_concurrency"`
	HistoryMaxEntries int      `toml:"history_max_entries"`
	HistoryMaxAge     duration `toml:"history_max_age"`
	DataDir           string   `toml:"data_dir"`
	Wallet            string   `toml:"wallet"` // optional: seed positions from this wallet's on-chain activity
}

// AlertsConfig holds alert rule thresholds and dedup settings. Thresholds are
// configuration, not contracts.
type AlertsConfig struct {
	PriceMovePercent    float64  `toml:"price_move_percent"`
	PriceMoveHighFactor float64  `toml:"price_move_high_factor"`
	TakeProfitPercent   float64  `toml:"take_profit_percent"`
	StopLossPercent     float64  `toml:"stop_loss_percent"`
	TimeDecayDays       float64  `toml:"time_decay_days"`
	LowLiquidity        float64  `toml:"low_liquidity"`
	DedupWindow         duration `toml:"dedup_window"`
	HistoryCap          int      `toml:"history_cap"`
}

// WebhooksConfig holds downstream alert delivery channels. URLs receive the
// raw JSON payload; Discord and Telegram get a formatted text rendering.
type WebhooksConfig struct {
	URLs           []string `toml:"urls"`
	Timeout        duration `toml:"timeout"`
	DiscordURL     string   `toml:"discord_url"`
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
}

// ArchiveConfig holds S3-compatible cold storage parameters for snapshot
// archival.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeedConfig controls the live WebSocket price feed.
type FeedConfig struct {
	Enabled bool `toml:"enabled"`
}

// MonitorConfig controls the heap memory monitor.
type MonitorConfig struct {
	SampleInterval duration `toml:"sample_interval"`
	WarnMB         uint64   `toml:"warn_mb"`
	CriticalMB     uint64   `toml:"critical_mb"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Client: ClientConfig{
			RequestsPerSecond: 5,
			Burst:             5,
			BreakerThreshold:  5,
			BreakerTimeout:    duration{30 * time.Second},
			MaxRetries:        3,
			BaseBackoff:       duration{500 * time.Millisecond},
			MaxBackoff:        duration{10 * time.Second},
			RequestTimeout:    duration{15 * time.Second},
			MarketCacheTTL:    duration{30 * time.Second},
			ListingCacheTTL:   duration{2 * time.Minute},
			AuditTrailSize:    256,
		},
		Resolver: ResolverConfig{
			MinScore:       20,
			MaxSuggestions: 5,
			ListingLimit:   500,
		},
		Tracker: TrackerConfig{
			PollInterval:      duration{1 * time.Minute},
			BatchConcurrency:  5,
			HistoryMaxEntries: 60,
			HistoryMaxAge:     duration{1 * time.Hour},
			DataDir:           "data",
		},
		Alerts: AlertsConfig{
			PriceMovePercent:    5,
			PriceMoveHighFactor: 2,
			TakeProfitPercent:   50,
			StopLossPercent:     -30,
			TimeDecayDays:       7,
			LowLiquidity:        5000,
			DedupWindow:         duration{1 * time.Hour},
			HistoryCap:          1000,
		},
		Webhooks: WebhooksConfig{
			Timeout: duration{10 * time.Second},
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polytrack-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Feed: FeedConfig{
			Enabled: false,
		},
		Monitor: MonitorConfig{
			SampleInterval: duration{30 * time.Second},
			WarnMB:         256,
			CriticalMB:     512,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Feed.Enabled && c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty when the feed is enabled")
	}

	// Client
	if c.Client.RequestsPerSecond <= 0 {
		errs = append(errs, "client: requests_per_second must be > 0")
	}
	if c.Client.Burst < 1 {
		errs = append(errs, "client: burst must be >= 1")
	}
	if c.Client.BreakerThreshold < 1 {
		errs = append(errs, "client: breaker_threshold must be >= 1")
	}
	if c.Client.BreakerTimeout.Duration <= 0 {
		errs = append(errs, "client: breaker_timeout must be > 0")
	}
	if c.Client.MaxRetries < 0 {
		errs = append(errs, "client: max_retries must be >= 0")
	}
	if c.Client.BaseBackoff.Duration <= 0 {
		errs = append(errs, "client: base_backoff must be > 0")
	}
	if c.Client.MaxBackoff.Duration < c.Client.BaseBackoff.Duration {
		errs = append(errs, "client: max_backoff must not be less than base_backoff")
	}
	if c.Client.RequestTimeout.Duration <= 0 {
		errs = append(errs, "client: request_timeout must be > 0")
	}

	// Resolver
	if c.Resolver.MinScore < 0 {
		errs = append(errs, "resolver: min_score must be >= 0")
	}
	if c.Resolver.MaxSuggestions < 1 {
		errs = append(errs, "resolver: max_suggestions must be >= 1")
	}
	if c.Resolver.ListingLimit < 1 {
		errs = append(errs, "resolver: listing_limit must be >= 1")
	}

	// Tracker
	if c.Tracker.PollInterval.Duration <= 0 {
		errs = append(errs, "tracker: poll_interval must be > 0")
	}
	if c.Tracker.BatchConcurrency < 1 {
		errs = append(errs, "tracker: batch_concurrency must be >= 1")
	}
	if c.Tracker.HistoryMaxEntries < 1 {
		errs = append(errs, "tracker: history_max_entries must be >= 1")
	}
	if c.Tracker.HistoryMaxAge.Duration <= 0 {
		errs = append(errs, "tracker: history_max_age must be > 0")
	}
	if c.Tracker.DataDir == "" {
		errs = append(errs, "tracker: data_dir must not be empty")
	}

	// Alerts
	if c.Alerts.PriceMovePercent <= 0 {
		errs = append(errs, "alerts: price_move_percent must be > 0")
	}
	if c.Alerts.PriceMoveHighFactor < 1 {
		errs = append(errs, "alerts: price_move_high_factor must be >= 1")
	}
	if c.Alerts.TakeProfitPercent <= 0 {
		errs = append(errs, "alerts: take_profit_percent must be > 0")
	}
	if c.Alerts.StopLossPercent >= 0 {
		errs = append(errs, "alerts: stop_loss_percent must be < 0")
	}
	if c.Alerts.DedupWindow.Duration <= 0 {
		errs = append(errs, "alerts: dedup_window must be > 0")
	}
	if c.Alerts.HistoryCap < 2 {
		errs = append(errs, "alerts: history_cap must be >= 2")
	}

	// Webhooks
	if c.Webhooks.Timeout.Duration <= 0 {
		errs = append(errs, "webhooks: timeout must be > 0")
	}
	for _, u := range c.Webhooks.URLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Sprintf("webhooks: url %q must start with http:// or https://", u))
		}
	}
	if c.Webhooks.DiscordURL != "" && !strings.HasPrefix(c.Webhooks.DiscordURL, "https://") {
		errs = append(errs, "webhooks: discord_url must start with https://")
	}
	if (c.Webhooks.TelegramToken == "") != (c.Webhooks.TelegramChatID == "") {
		errs = append(errs, "webhooks: telegram_token and telegram_chat_id must be set together")
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" {
			errs = append(errs, "archive: endpoint must not be empty when enabled")
		}
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when enabled")
		}
	}

	// Monitor
	if c.Monitor.SampleInterval.Duration <= 0 {
		errs = append(errs, "monitor: sample_interval must be > 0")
	}
	if c.Monitor.CriticalMB > 0 && c.Monitor.WarnMB > c.Monitor.CriticalMB {
		errs = append(errs, "monitor: warn_mb must not exceed critical_mb")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
