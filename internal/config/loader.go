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
// built-in defaults, applies KALBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known KALBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.ApiKey, "KALBOT_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "KALBOT_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.BaseURL, "KALBOT_KALSHI_BASE_URL")
	setInt(&cfg.Kalshi.RequestsPerSecond, "KALBOT_KALSHI_REQUESTS_PER_SECOND")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "KALBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "KALBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "KALBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KALBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KALBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KALBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KALBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KALBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KALBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KALBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KALBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KALBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KALBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KALBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KALBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KALBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KALBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "KALBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "KALBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KALBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "KALBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KALBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KALBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KALBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KALBOT_S3_FORCE_PATH_STYLE")

	// ── Reasoning ──
	setStr(&cfg.Reasoning.ApiKey, "KALBOT_REASONING_API_KEY")
	setStr(&cfg.Reasoning.ApiKey, "ANTHROPIC_API_KEY") // compatibility alias
	setStr(&cfg.Reasoning.BaseURL, "KALBOT_REASONING_BASE_URL")
	setStr(&cfg.Reasoning.Model, "KALBOT_REASONING_MODEL")
	setInt(&cfg.Reasoning.MaxTokens, "KALBOT_REASONING_MAX_TOKENS")
	setDuration(&cfg.Reasoning.Timeout, "KALBOT_REASONING_TIMEOUT")

	// ── Scanner ──
	setInt(&cfg.Scanner.MaxMarkets, "KALBOT_SCANNER_MAX_MARKETS")
	setBool(&cfg.Scanner.Bond.Enabled, "KALBOT_SCANNER_BOND_ENABLED")
	setFloat64(&cfg.Scanner.Bond.MinYesPrice, "KALBOT_SCANNER_BOND_MIN_YES_PRICE")
	setBool(&cfg.Scanner.MarketMaking.Enabled, "KALBOT_SCANNER_MARKET_MAKING_ENABLED")
	setBool(&cfg.Scanner.BTC.Enabled, "KALBOT_SCANNER_BTC_ENABLED")
	setFloat64(&cfg.Scanner.BTC.DailyVol, "KALBOT_SCANNER_BTC_DAILY_VOLATILITY")

	// ── Trading ──
	setBool(&cfg.Trading.PaperMode, "KALBOT_TRADING_PAPER_MODE")
	setFloat64(&cfg.Trading.FeePerContract, "KALBOT_TRADING_FEE_PER_CONTRACT")
	setFloat64(&cfg.Trading.InitialBankroll, "KALBOT_TRADING_INITIAL_BANKROLL")

	// ── News ──
	setBool(&cfg.News.Enabled, "KALBOT_NEWS_ENABLED")
	setStringSlice(&cfg.News.Feeds, "KALBOT_NEWS_FEEDS")
	setDuration(&cfg.News.PollInterval, "KALBOT_NEWS_POLL_INTERVAL")
	setInt(&cfg.News.MaxPerPoll, "KALBOT_NEWS_MAX_PER_POLL")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.ScanInterval, "KALBOT_SCHEDULER_SCAN_INTERVAL")
	setDuration(&cfg.Scheduler.MonitorInterval, "KALBOT_SCHEDULER_MONITOR_INTERVAL")
	setInt(&cfg.Scheduler.MaintenanceHour, "KALBOT_SCHEDULER_MAINTENANCE_HOUR")
	setDuration(&cfg.Scheduler.ArchiveInterval, "KALBOT_SCHEDULER_ARCHIVE_INTERVAL")
	setDuration(&cfg.Scheduler.LockTTL, "KALBOT_SCHEDULER_LOCK_TTL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "KALBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "KALBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "KALBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KALBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KALBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KALBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "KALBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "KALBOT_MODE")
	setStr(&cfg.LogLevel, "KALBOT_LOG_LEVEL")
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
