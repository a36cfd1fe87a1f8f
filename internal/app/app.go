package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/adapters/ai"
	"github.com/selivandex/stock-qa-bot/internal/adapters/clickhouse"
	"github.com/selivandex/stock-qa-bot/internal/adapters/config"
	"github.com/selivandex/stock-qa-bot/internal/adapters/database"
	embeddingsRepo "github.com/selivandex/stock-qa-bot/internal/adapters/embeddings"
	"github.com/selivandex/stock-qa-bot/internal/adapters/fetch"
	"github.com/selivandex/stock-qa-bot/internal/adapters/market"
	"github.com/selivandex/stock-qa-bot/internal/adapters/news"
	redisAdapter "github.com/selivandex/stock-qa-bot/internal/adapters/redis"
	"github.com/selivandex/stock-qa-bot/internal/chunking"
	"github.com/selivandex/stock-qa-bot/internal/conversation"
	"github.com/selivandex/stock-qa-bot/internal/dedup"
	"github.com/selivandex/stock-qa-bot/internal/reports"
	"github.com/selivandex/stock-qa-bot/pkg/embeddings"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/metrics"
	"github.com/selivandex/stock-qa-bot/pkg/templates"
)

// App holds every wired component shared by the bot and the CLI
type App struct {
	Config    *config.Config
	Engine    *conversation.Engine
	Reports   *reports.Generator
	Templates *templates.Manager
	News      *news.Aggregator
	Market    *market.Service
	Charts    *market.ChartSource
	LLM       ai.Provider

	// Optional infrastructure; nil when disabled in config
	DB            *database.DB
	ClickHouse    *database.DB
	Redis         *redisAdapter.Client
	EmbeddingRepo *embeddingsRepo.Repository

	Metrics metrics.Buffer
}

// New connects infrastructure and builds the conversation engine.
// Postgres, Redis and ClickHouse are optional; failures there degrade to in-memory behaviour.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	a.initInfrastructure(ctx)
	a.Metrics = a.initMetrics()

	fetcher := fetch.NewClient(&cfg.HTTP)

	var err error
	a.News, err = a.initNewsSystem(fetcher)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Charts = market.NewChartSource(fetcher, cfg.Market.ChartURL, cfg.Market.ChartDays)
	a.Market = initMarketSystem(cfg, fetcher, a.Charts)

	embedder := a.initEmbeddings()

	a.LLM, err = ai.NewProvider(ctx, &cfg.AI)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize AI provider: %w", err)
	}
	logger.Info("🧠 AI provider initialized", zap.String("provider", a.LLM.GetName()))

	tokenizer, err := chunking.NewTiktokenTokenizer(cfg.RAG.TokenEncoding)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}
	splitter, err := chunking.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, tokenizer)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize splitter: %w", err)
	}

	a.Engine, err = conversation.NewEngine(conversation.Config{
		TopK:              cfg.RAG.TopK,
		DefaultDayWindow:  cfg.RAG.DefaultDayWindow,
		MaxDayWindow:      cfg.RAG.MaxDayWindow,
		GenerationTimeout: cfg.AI.GenerationTimeout,
		QueryTimeout:      cfg.Embedding.Timeout,
	}, conversation.Deps{
		News:     a.News,
		Market:   a.Market,
		Dedup:    dedup.New(cfg.RAG.DedupThreshold),
		Splitter: splitter,
		Embedder: embedder,
		LLM:      a.LLM,
		Metrics:  a.Metrics,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to create conversation engine: %w", err)
	}

	a.Templates, err = templates.Default()
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	a.Reports = reports.NewGenerator(a.LLM, a.Templates, cfg.AI.GenerationTimeout)

	logger.Info("✅ conversation engine ready",
		zap.Int("top_k", cfg.RAG.TopK),
		zap.Int("chunk_size", cfg.RAG.ChunkSize),
		zap.Strings("news_providers", cfg.News.EnabledNewsProviders()),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	return a, nil
}

// initInfrastructure connects the optional stores and runs their migrations
func (a *App) initInfrastructure(ctx context.Context) {
	cfg := a.Config

	if cfg.Database.Enabled {
		db, err := initDatabase(ctx, &cfg.Database)
		if err != nil {
			logger.Warn("⚠️ PostgreSQL not available, embedding cache and news archive disabled", zap.Error(err))
		} else {
			a.DB = db
		}
	}

	if cfg.Redis.Enabled {
		client, err := initRedis(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn("⚠️ Redis not available, news cache and locks disabled", zap.Error(err))
		} else {
			a.Redis = client
		}
	}

	if cfg.ClickHouse.Enabled {
		ch, err := initClickHouse(ctx, &cfg.ClickHouse)
		if err != nil {
			logger.Warn("⚠️ ClickHouse not available, metrics disabled", zap.Error(err))
		} else {
			a.ClickHouse = ch
		}
	}
}

func initDatabase(ctx context.Context, cfg *config.DatabaseConfig) (*database.DB, error) {
	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.RedisConfig) (*redisAdapter.Client, error) {
	client, err := redisAdapter.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis health check failed: %w", err)
	}
	return client, nil
}

func initClickHouse(ctx context.Context, cfg *config.ClickHouseConfig) (*database.DB, error) {
	ch, err := database.NewClickHouse(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := ch.RunMigrations(cfg.MigrationsPath); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to run clickhouse migrations: %w", err)
	}
	return ch, nil
}

func (a *App) initMetrics() metrics.Buffer {
	if a.ClickHouse == nil {
		return metrics.NopBuffer{}
	}
	return metrics.NewBufferedMetrics(metrics.BufferConfig{
		Writer:        clickhouse.NewWriter(a.ClickHouse.DB()),
		BatchSize:     a.Config.ClickHouse.BatchSize,
		FlushInterval: a.Config.ClickHouse.FlushInterval,
		MaxBufferSize: a.Config.ClickHouse.BatchSize * 50,
	})
}

// initNewsSystem builds providers and the aggregator with whatever cache and archive are available
func (a *App) initNewsSystem(fetcher *fetch.Client) (*news.Aggregator, error) {
	cfg := a.Config

	var providers []news.Provider
	if cfg.News.NaverEnabled {
		providers = append(providers, news.NewNaverProvider(fetcher, true, cfg.News.NaverMaxPages))
	}
	if cfg.News.GoogleRSSEnabled {
		providers = append(providers, news.NewRSSProvider(fetcher, true))
	}
	if len(providers) == 0 {
		return nil, news.ErrNoProviders
	}

	opts := news.Options{
		Metrics:  a.Metrics,
		MaxItems: cfg.News.MaxItems,
	}
	if a.Redis != nil {
		opts.Cache = news.NewRedisCache(a.Redis, cfg.News.CacheTTL)
		opts.Locks = a.Redis.LockFactory()
	}
	if a.DB != nil {
		opts.Archive = news.NewArchive(a.DB.DB())
	}

	logger.Info("📰 news system initialized",
		zap.Strings("providers", cfg.News.EnabledNewsProviders()),
		zap.Bool("cache", opts.Cache != nil),
		zap.Bool("archive", opts.Archive != nil),
	)

	return news.NewAggregator(providers, opts), nil
}

func initMarketSystem(cfg *config.Config, fetcher *fetch.Client, charts *market.ChartSource) *market.Service {
	resolvers := market.ChainResolver{market.NewStaticResolver(cfg.Market.Tickers)}
	if cfg.Market.TickerLookup {
		resolvers = append(resolvers, market.NewNaverResolver(fetcher, cfg.Market.AutocompleteURL))
	}

	return market.NewService(resolvers,
		market.NewNaverFinanceSource(fetcher, cfg.Market.NaverFinanceURL),
		charts,
	)
}

// initEmbeddings returns the OpenAI client (with Postgres cache when available) or the offline hashing embedder
func (a *App) initEmbeddings() embeddings.Embedder {
	cfg := a.Config

	if cfg.Embedding.Provider == "hashing" {
		logger.Warn("⚠️ using hashing embeddings (offline mode, lower quality)",
			zap.Int("dim", cfg.Embedding.Dimension),
		)
		return embeddings.NewHashingEmbedder(cfg.Embedding.Dimension)
	}

	embCfg := embeddings.Config{
		OpenAIClient:  embeddings.NewOpenAIClient(cfg.AI.OpenAIAPIKey, cfg.AI.OpenAIBaseURL, cfg.Embedding.Timeout),
		MetricsBuffer: a.Metrics,
		Model:         openai.EmbeddingModel(cfg.Embedding.Model),
		MaxRetries:    cfg.Embedding.MaxRetries,
	}
	if a.DB != nil && cfg.Embedding.CacheEnabled {
		a.EmbeddingRepo = embeddingsRepo.NewRepository(a.DB.DB())
		embCfg.Repository = a.EmbeddingRepo
	}

	logger.Info("✅ OpenAI embeddings client initialized", zap.String("model", cfg.Embedding.Model))
	return embeddings.NewClient(embCfg)
}

// Close flushes metrics and closes every open connection
func (a *App) Close(ctx context.Context) {
	if a.Metrics != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.Metrics.Close(flushCtx); err != nil {
			logger.Error("metrics buffer close error", zap.Error(err))
		}
		cancel()
	}
	if a.Redis != nil {
		logger.Info("closing redis connection...")
		if err := a.Redis.Close(); err != nil {
			logger.Error("redis close error", zap.Error(err))
		}
	}
	if a.DB != nil {
		logger.Info("closing database connection...")
		if err := a.DB.Close(); err != nil {
			logger.Error("database close error", zap.Error(err))
		}
	}
	if a.ClickHouse != nil {
		logger.Info("closing clickhouse connection...")
		if err := a.ClickHouse.Close(); err != nil {
			logger.Error("clickhouse close error", zap.Error(err))
		}
	}
}
