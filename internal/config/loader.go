package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYTRACK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYTRACK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYTRACK_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYTRACK_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYTRACK_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYTRACK_POLYMARKET_WS_HOST")

	// ── Client ──
	setFloat64(&cfg.Client.RequestsPerSecond, "POLYTRACK_CLIENT_REQUESTS_PER_SECOND")
	setInt(&cfg.Client.Burst, "POLYTRACK_CLIENT_BURST")
	setInt(&cfg.Client.BreakerThreshold, "POLYTRACK_CLIENT_BREAKER_THRESHOLD")
	setDuration(&cfg.Client.BreakerTimeout, "POLYTRACK_CLIENT_BREAKER_TIMEOUT")
	setInt(&cfg.Client.MaxRetries, "POLYTRACK_CLIENT_MAX_RETRIES")
	setDuration(&cfg.Client.BaseBackoff, "POLYTRACK_CLIENT_BASE_BACKOFF")
	setDuration(&cfg.Client.MaxBackoff, "POLYTRACK_CLIENT_MAX_BACKOFF")
	setDuration(&cfg.Client.RequestTimeout, "POLYTRACK_CLIENT_REQUEST_TIMEOUT")
	setDuration(&cfg.Client.MarketCacheTTL, "POLYTRACK_CLIENT_MARKET_CACHE_TTL")
	setDuration(&cfg.Client.ListingCacheTTL, "POLYTRACK_CLIENT_LISTING_CACHE_TTL")
	setInt(&cfg.Client.AuditTrailSize, "POLYTRACK_CLIENT_AUDIT_TRAIL_SIZE")

	// ── Resolver ──
	setInt(&cfg.Resolver.MinScore, "POLYTRACK_RESOLVER_MIN_SCORE")
	setInt(&cfg.Resolver.MaxSuggestions, "POLYTRACK_RESOLVER_MAX_SUGGESTIONS")
	setInt(&cfg.Resolver.ListingLimit, "POLYTRACK_RESOLVER_LISTING_LIMIT")

	// ── Tracker ──
	setDuration(&cfg.Tracker.PollInterval, "POLYTRACK_TRACKER_POLL_INTERVAL")
	setInt(&cfg.Tracker.BatchConcurrency, "POLYTRACK_TRACKER_BATCH_CONCURRENCY")
	setInt(&cfg.Tracker.HistoryMaxEntries, "POLYTRACK_TRACKER_HISTORY_MAX_ENTRIES")
	setDuration(&cfg.Tracker.HistoryMaxAge, "POLYTRACK_TRACKER_HISTORY_MAX_AGE")
	setStr(&cfg.Tracker.DataDir, "POLYTRACK_TRACKER_DATA_DIR")
	setStr(&cfg.Tracker.Wallet, "POLYTRACK_TRACKER_WALLET")

	// ── Alerts ──
	setFloat64(&cfg.Alerts.PriceMovePercent, "POLYTRACK_ALERTS_PRICE_MOVE_PERCENT")
	setFloat64(&cfg.Alerts.PriceMoveHighFactor, "POLYTRACK_ALERTS_PRICE_MOVE_HIGH_FACTOR")
	setFloat64(&cfg.Alerts.TakeProfitPercent, "POLYTRACK_ALERTS_TAKE_PROFIT_PERCENT")
	setFloat64(&cfg.Alerts.StopLossPercent, "POLYTRACK_ALERTS_STOP_LOSS_PERCENT")
	setFloat64(&cfg.Alerts.TimeDecayDays, "POLYTRACK_ALERTS_TIME_DECAY_DAYS")
	setFloat64(&cfg.Alerts.LowLiquidity, "POLYTRACK_ALERTS_LOW_LIQUIDITY")
	setDuration(&cfg.Alerts.DedupWindow, "POLYTRACK_ALERTS_DEDUP_WINDOW")
	setInt(&cfg.Alerts.HistoryCap, "POLYTRACK_ALERTS_HISTORY_CAP")

	// ── Webhooks ──
	setStringSlice(&cfg.Webhooks.URLs, "POLYTRACK_WEBHOOKS_URLS")
	setDuration(&cfg.Webhooks.Timeout, "POLYTRACK_WEBHOOKS_TIMEOUT")
	setStr(&cfg.Webhooks.DiscordURL, "POLYTRACK_WEBHOOKS_DISCORD_URL")
	setStr(&cfg.Webhooks.TelegramToken, "POLYTRACK_WEBHOOKS_TELEGRAM_TOKEN")
	setStr(&cfg.Webhooks.TelegramChatID, "POLYTRACK_WEBHOOKS_TELEGRAM_CHAT_ID")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLYTRACK_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "POLYTRACK_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "POLYTRACK_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "POLYTRACK_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "POLYTRACK_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "POLYTRACK_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "POLYTRACK_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "POLYTRACK_ARCHIVE_FORCE_PATH_STYLE")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "POLYTRACK_FEED_ENABLED")

	// ── Monitor ──
	setDuration(&cfg.Monitor.SampleInterval, "POLYTRACK_MONITOR_SAMPLE_INTERVAL")
	setUint64(&cfg.Monitor.WarnMB, "POLYTRACK_MONITOR_WARN_MB")
	setUint64(&cfg.Monitor.CriticalMB, "POLYTRACK_MONITOR_CRITICAL_MB")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "POLYTRACK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
