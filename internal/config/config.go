// Package config defines the top-level configuration for the trading bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by KALBOT_* environment variables.
type Config struct {
	Kalshi    KalshiConfig    `toml:"kalshi"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Reasoning ReasoningConfig `toml:"reasoning"`
	Scanner   ScannerConfig   `toml:"scanner"`
	Trading   TradingConfig   `toml:"trading"`
	News      NewsConfig      `toml:"news"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// KalshiConfig holds Kalshi exchange API credentials.
type KalshiConfig struct {
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	BaseURL           string `toml:"base_url"`
	RequestsPerSecond int    `toml:"requests_per_second"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the trade
// ledger archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ReasoningConfig holds the LLM API parameters used by the reflection
// engine and news classifier.
type ReasoningConfig struct {
	ApiKey    string   `toml:"api_key"`
	BaseURL   string   `toml:"base_url"`
	Model     string   `toml:"model"`
	MaxTokens int      `toml:"max_tokens"`
	Timeout   duration `toml:"timeout"`
}

// ScannerConfig holds per-strategy scan parameters.
type ScannerConfig struct {
	Bond         BondScannerConfig `toml:"bond"`
	MarketMaking MMScannerConfig   `toml:"market_making"`
	BTC          BTCScannerConfig  `toml:"btc"`
	MaxMarkets   int               `toml:"max_markets"`
}

// BondScannerConfig holds config for the deep-favorite bond scanner.
type BondScannerConfig struct {
	Enabled           bool    `toml:"enabled"`
	MinYesPrice       float64 `toml:"min_yes_price"`
	ModelProb         float64 `toml:"model_prob"`
	Confidence        float64 `toml:"confidence"`
	MaxDaysOut        int     `toml:"max_days_out"`
	MinVolume         float64 `toml:"min_volume"`
	ProposedContracts int     `toml:"proposed_contracts"`
}

// MMScannerConfig holds config for the spread-capture scanner.
type MMScannerConfig struct {
	Enabled       bool    `toml:"enabled"`
	MinSpread     float64 `toml:"min_spread"`
	Confidence    float64 `toml:"confidence"`
	MinHoursLeft  float64 `toml:"min_hours_left"`
	QuoteContract int     `toml:"quote_contracts"`
	MinVolume     float64 `toml:"min_volume"`
}

// BTCScannerConfig holds config for the bitcoin strike scanner.
type BTCScannerConfig struct {
	Enabled           bool    `toml:"enabled"`
	SeriesTicker      string  `toml:"series_ticker"`
	DailyVol          float64 `toml:"daily_volatility"`
	Confidence        float64 `toml:"confidence"`
	MinEdge           float64 `toml:"min_edge"`
	MinYesEdge        float64 `toml:"min_yes_edge"`
	MaxHours          float64 `toml:"max_hours"`
	CoinGeckoID       string  `toml:"coingecko_id"`
	ProposedContracts int     `toml:"proposed_contracts"`
}

// TradingConfig holds execution-level parameters.
type TradingConfig struct {
	PaperMode       bool    `toml:"paper_mode"`
	FeePerContract  float64 `toml:"fee_per_contract"`
	InitialBankroll float64 `toml:"initial_bankroll"`
}

// NewsConfig holds RSS advisory listener parameters.
type NewsConfig struct {
	Enabled      bool     `toml:"enabled"`
	Feeds        []string `toml:"feeds"`
	PollInterval duration `toml:"poll_interval"`
	MaxPerPoll   int      `toml:"max_per_poll"`
}

// SchedulerConfig holds task cadences for the control loop.
type SchedulerConfig struct {
	ScanInterval     duration `toml:"scan_interval"`
	MonitorInterval  duration `toml:"monitor_interval"`
	MaintenanceHour  int      `toml:"maintenance_hour"`
	ArchiveInterval  duration `toml:"archive_interval"`
	LockTTL          duration `toml:"lock_ttl"`
	WeeklyReportDay  string   `toml:"weekly_report_day"`
	ReflectionBuffer int      `toml:"reflection_buffer"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL:           "https://api.elections.kalshi.com/trade-api/v2",
			RequestsPerSecond: 10,
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "kalbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "kalbot-ledger",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Reasoning: ReasoningConfig{
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
			Timeout:   duration{30 * time.Second},
		},
		Scanner: ScannerConfig{
			MaxMarkets: 200,
			Bond: BondScannerConfig{
				Enabled:           true,
				MinYesPrice:       0.88,
				ModelProb:         0.97,
				Confidence:        0.85,
				MaxDaysOut:        30,
				MinVolume:         5000,
				ProposedContracts: 10,
			},
			MarketMaking: MMScannerConfig{
				Enabled:       true,
				MinSpread:     0.03,
				Confidence:    0.70,
				MinHoursLeft:  4,
				QuoteContract: 10,
				MinVolume:     5000,
			},
			BTC: BTCScannerConfig{
				Enabled:           true,
				SeriesTicker:      "KXBTC",
				DailyVol:          0.03,
				Confidence:        0.60,
				MinEdge:           0.025,
				MinYesEdge:        0.05,
				MaxHours:          8,
				CoinGeckoID:       "bitcoin",
				ProposedContracts: 10,
			},
		},
		Trading: TradingConfig{
			PaperMode:       true,
			FeePerContract:  0.07,
			InitialBankroll: 1000,
		},
		News: NewsConfig{
			Enabled:      false,
			Feeds:        []string{},
			PollInterval: duration{5 * time.Minute},
			MaxPerPoll:   10,
		},
		Scheduler: SchedulerConfig{
			ScanInterval:     duration{60 * time.Second},
			MonitorInterval:  duration{30 * time.Second},
			MaintenanceHour:  0,
			ArchiveInterval:  duration{6 * time.Hour},
			LockTTL:          duration{2 * time.Minute},
			WeeklyReportDay:  "Monday",
			ReflectionBuffer: 32,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_opened", "position_closed", "breaker_tripped", "recommendation", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Kalshi credentials are required unless paper mode keeps the exchange
	// surface read-only.
	needsExchange := c.Mode == "trade" || c.Mode == "full" || c.Mode == "monitor"
	if needsExchange && !c.Trading.PaperMode {
		if c.Kalshi.ApiKey == "" {
			errs = append(errs, "kalshi: api_key is required for live trading")
		}
		if c.Kalshi.RsaPrivateKeyPath == "" {
			errs = append(errs, "kalshi: rsa_private_key_path is required for live trading")
		}
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.RequestsPerSecond < 1 {
		errs = append(errs, "kalshi: requests_per_second must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Reasoning is optional, but a set API key needs a model to call.
	if c.Reasoning.ApiKey != "" && c.Reasoning.Model == "" {
		errs = append(errs, "reasoning: model must be set when api_key is set")
	}
	if c.Reasoning.MaxTokens < 1 {
		errs = append(errs, "reasoning: max_tokens must be >= 1")
	}

	// Scanner
	if c.Scanner.MaxMarkets < 1 {
		errs = append(errs, "scanner: max_markets must be >= 1")
	}
	if c.Scanner.Bond.Enabled {
		if c.Scanner.Bond.MinYesPrice <= 0 || c.Scanner.Bond.MinYesPrice >= 1 {
			errs = append(errs, "scanner.bond: min_yes_price must be in (0, 1)")
		}
		if c.Scanner.Bond.ModelProb <= c.Scanner.Bond.MinYesPrice {
			errs = append(errs, "scanner.bond: model_prob must exceed min_yes_price")
		}
	}
	if c.Scanner.BTC.Enabled {
		if c.Scanner.BTC.DailyVol <= 0 {
			errs = append(errs, "scanner.btc: daily_volatility must be > 0")
		}
		if c.Scanner.BTC.CoinGeckoID == "" {
			errs = append(errs, "scanner.btc: coingecko_id must not be empty")
		}
	}

	// Trading
	if c.Trading.FeePerContract < 0 {
		errs = append(errs, "trading: fee_per_contract must be >= 0")
	}
	if c.Trading.InitialBankroll <= 0 {
		errs = append(errs, "trading: initial_bankroll must be > 0")
	}

	// News
	if c.News.Enabled {
		if len(c.News.Feeds) == 0 {
			errs = append(errs, "news: at least one feed is required when enabled")
		}
		if c.News.PollInterval.Duration < time.Minute {
			errs = append(errs, "news: poll_interval must be >= 1m")
		}
	}

	// Scheduler
	if c.Scheduler.ScanInterval.Duration < 10*time.Second {
		errs = append(errs, "scheduler: scan_interval must be >= 10s")
	}
	if c.Scheduler.MonitorInterval.Duration < 5*time.Second {
		errs = append(errs, "scheduler: monitor_interval must be >= 5s")
	}
	if c.Scheduler.MaintenanceHour < 0 || c.Scheduler.MaintenanceHour > 23 {
		errs = append(errs, "scheduler: maintenance_hour must be 0-23")
	}
	if c.Scheduler.ReflectionBuffer < 1 {
		errs = append(errs, "scheduler: reflection_buffer must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
