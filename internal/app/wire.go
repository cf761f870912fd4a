package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	s3blob "github.com/Nostem/Auto-Trading-Bot/internal/blob/s3"
	"github.com/Nostem/Auto-Trading-Bot/internal/cache/redis"
	"github.com/Nostem/Auto-Trading-Bot/internal/config"
	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/notify"
	"github.com/Nostem/Auto-Trading-Bot/internal/platform/anthropic"
	"github.com/Nostem/Auto-Trading-Bot/internal/platform/coingecko"
	"github.com/Nostem/Auto-Trading-Bot/internal/platform/kalshi"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
	"github.com/Nostem/Auto-Trading-Bot/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the run modes need. Wire
// constructs them; the returned cleanup tears them down in reverse order.
type Dependencies struct {
	// Stores
	SettingStore        domain.SettingStore
	TradeStore          domain.TradeStore
	PositionStore       domain.PositionStore
	ExecutionStore      domain.ExecutionStore
	ReflectionStore     domain.ReflectionStore
	RecommendationStore domain.RecommendationStore
	Settings            *settings.Service

	// Cache
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Platform clients
	Exchange domain.Exchange
	Spot     *coingecko.Client
	Reasoner *anthropic.Client

	// Infrastructure
	Notifier *notify.Notifier
	Archiver *s3blob.Archiver // nil when the archive is disabled

	// Raw clients kept for health checks
	Postgres *postgres.Client
	Redis    *redis.Client
}

// Wire builds all concrete dependencies from the configuration.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// Postgres
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Postgres = pgClient
	deps.SettingStore = postgres.NewSettingStore(pool)
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.ExecutionStore = postgres.NewExecutionStore(pool)
	deps.ReflectionStore = postgres.NewReflectionStore(pool)
	deps.RecommendationStore = postgres.NewRecommendationStore(pool)
	deps.Settings = settings.NewService(deps.SettingStore, logger)

	if err := seedBankroll(ctx, deps.SettingStore, cfg.Trading.InitialBankroll); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: seed bankroll: %w", err)
	}

	// Redis
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// Kalshi exchange
	exchange := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey, cfg.Kalshi.RequestsPerSecond)
	if cfg.Kalshi.RsaPrivateKeyPath != "" {
		pemBytes, err := os.ReadFile(cfg.Kalshi.RsaPrivateKeyPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: read kalshi private key: %w", err)
		}
		if err := exchange.SetRSAPrivateKey(pemBytes); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	deps.Exchange = exchange

	// Spot prices and the reasoning service
	deps.Spot = coingecko.NewClient()
	deps.Reasoner = anthropic.NewClient(anthropic.ClientConfig{
		ApiKey:    cfg.Reasoning.ApiKey,
		BaseURL:   cfg.Reasoning.BaseURL,
		Model:     cfg.Reasoning.Model,
		MaxTokens: cfg.Reasoning.MaxTokens,
		Timeout:   cfg.Reasoning.Timeout.Duration,
	})

	// Ledger archive
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Archiver = s3blob.NewArchiver(deps.TradeStore, deps.ReflectionStore, s3Client, logger)
	}

	// Notifications
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// seedBankroll writes the initial bankroll on first boot. An existing
// value is never overwritten; the bankroll only moves through finalized
// trades and manual corrections after that.
func seedBankroll(ctx context.Context, store domain.SettingStore, initial float64) error {
	_, err := store.Get(ctx, "current_bankroll")
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return store.Put(ctx, "current_bankroll", strconv.FormatFloat(initial, 'f', 2, 64))
}
