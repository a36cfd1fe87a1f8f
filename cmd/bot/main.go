package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/adapters/config"
	"github.com/selivandex/stock-qa-bot/internal/adapters/telegram"
	"github.com/selivandex/stock-qa-bot/internal/app"
	"github.com/selivandex/stock-qa-bot/internal/health"
	"github.com/selivandex/stock-qa-bot/internal/workers"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/worker"
)

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	// Run application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	logger.Info("📈 Stock Q&A bot starting...",
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	sessions := telegram.NewSessionStore(cfg.RAG.SessionTTL)

	bot, err := telegram.NewBot(&cfg.Telegram, &cfg.RAG, telegram.Deps{
		Engine:    application.Engine,
		Reports:   application.Reports,
		Charts:    application.Charts,
		Templates: application.Templates,
		Sessions:  sessions,
	})
	if err != nil {
		application.Close(context.Background())
		return err
	}

	workerGroup := startBackgroundWorkers(ctx, cfg, application)

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = startHealthServer(cfg, application, sessions)
	}

	botDone := make(chan error, 1)
	go func(done chan<- error) {
		done <- bot.Start(ctx)
	}(botDone)

	logger.Info("📱 Telegram bot started",
		zap.Int("allowed_chats", len(cfg.Telegram.AllowedChats)),
		zap.Duration("session_ttl", cfg.RAG.SessionTTL),
	)

	// Wait for shutdown signal or bot failure
	select {
	case <-ctx.Done():
	case err := <-botDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("telegram bot error", zap.Error(err))
		}
		botDone = nil
	}

	return performGracefulShutdown(healthServer, workerGroup, application, botDone)
}

// initConfig loads .env (when present), configuration and logger
func initConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// startBackgroundWorkers starts the news prefetch and embedding prune workers
func startBackgroundWorkers(ctx context.Context, cfg *config.Config, application *app.App) *worker.Group {
	group := worker.NewGroup(ctx)

	if len(cfg.News.Watchlist) > 0 {
		group.Add(
			workers.NewNewsPrefetchWorker(application.News, cfg.News.Watchlist, cfg.RAG.DefaultDayWindow),
			cfg.News.PrefetchInterval,
		)
	}

	if application.EmbeddingRepo != nil {
		group.Add(
			workers.NewEmbeddingPruneWorker(application.EmbeddingRepo, cfg.Embedding.RetentionDays),
			24*time.Hour,
		)
	}

	logger.Info("background workers started", zap.Int("workers", group.Len()))
	return group
}

// startHealthServer starts the probe server with a check per connected store
func startHealthServer(cfg *config.Config, application *app.App, sessions *telegram.SessionStore) *health.Server {
	checks := make(map[string]health.Checker)
	if application.DB != nil {
		checks["database"] = application.DB
	}
	if application.Redis != nil {
		checks["redis"] = application.Redis
	}
	if application.ClickHouse != nil {
		checks["clickhouse"] = application.ClickHouse
	}

	healthServer := health.NewServer(cfg.Health.Port, checks, sessions)

	go func() {
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	healthServer.SetReady(true)
	return healthServer
}

// performGracefulShutdown stops intake first, then workers, then connections
func performGracefulShutdown(healthServer *health.Server, group *worker.Group, application *app.App, botDone <-chan error) error {
	logger.Info("🛑 Shutdown signal received, starting graceful shutdown...")

	if healthServer != nil {
		healthServer.SetReady(false)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer shutdownCancel()

	if botDone != nil {
		logger.Info("waiting for telegram handlers...")
		select {
		case <-botDone:
		case <-shutdownCtx.Done():
			logger.Warn("⚠️ telegram handlers did not finish in time")
		}
	}

	logger.Info("stopping background workers...")
	group.Stop(10 * time.Second)

	application.Close(shutdownCtx)

	if healthServer != nil {
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Error("health server stop error", zap.Error(err))
		}
	}

	select {
	case <-shutdownCtx.Done():
		logger.Warn("⚠️ shutdown timeout exceeded")
		return fmt.Errorf("graceful shutdown timeout")
	default:
		logger.Info("✅ shutdown completed successfully")
	}

	return nil
}
