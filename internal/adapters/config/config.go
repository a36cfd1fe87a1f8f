package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	AI         AIConfig         `envconfig:"AI"`
	Embedding  EmbeddingConfig  `envconfig:"EMBEDDING"`
	RAG        RAGConfig        `envconfig:"RAG"`
	News       NewsConfig       `envconfig:"NEWS"`
	Market     MarketConfig     `envconfig:"MARKET"`
	HTTP       HTTPConfig       `envconfig:"HTTP"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
	Health     HealthConfig     `envconfig:"HEALTH"`
}

// AIConfig selects the generation provider
type AIConfig struct {
	Provider          string        `envconfig:"AI_PROVIDER" default:"openai"` // openai, deepseek, claude, gemini
	Temperature       float32       `envconfig:"AI_TEMPERATURE" default:"0.3"`
	MaxTokens         int           `envconfig:"AI_MAX_TOKENS" default:"1500"`
	GenerationTimeout time.Duration `envconfig:"AI_GENERATION_TIMEOUT" default:"60s"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	DeepSeekAPIKey string `envconfig:"DEEPSEEK_API_KEY"`
	DeepSeekModel  string `envconfig:"DEEPSEEK_MODEL" default:"deepseek-chat"`

	ClaudeAPIKey string `envconfig:"CLAUDE_API_KEY"`
	ClaudeModel  string `envconfig:"CLAUDE_MODEL" default:"claude-3-5-sonnet-latest"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
}

// EmbeddingConfig selects the embedding backend
type EmbeddingConfig struct {
	Provider      string        `envconfig:"EMBEDDING_PROVIDER" default:"openai"` // openai or hashing
	Model         string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	Dimension     int           `envconfig:"EMBEDDING_DIM" default:"512"` // hashing embedder only
	MaxRetries    int           `envconfig:"EMBEDDING_MAX_RETRIES" default:"3"`
	Timeout       time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"20s"` // per request and per query embedding
	CacheEnabled  bool          `envconfig:"EMBEDDING_CACHE_ENABLED" default:"true"`
	RetentionDays int           `envconfig:"EMBEDDING_RETENTION_DAYS" default:"90"`
}

// RAGConfig holds retrieval and chunking parameters
type RAGConfig struct {
	TopK             int           `envconfig:"RAG_TOP_K" default:"4"`
	ChunkSize        int           `envconfig:"RAG_CHUNK_SIZE" default:"900"`
	ChunkOverlap     int           `envconfig:"RAG_CHUNK_OVERLAP" default:"100"`
	TokenEncoding    string        `envconfig:"RAG_TOKEN_ENCODING" default:"cl100k_base"`
	DedupThreshold   float64       `envconfig:"DEDUP_THRESHOLD" default:"0.3"`
	DefaultDayWindow int           `envconfig:"RAG_DEFAULT_DAYS" default:"7"`
	MaxDayWindow     int           `envconfig:"RAG_MAX_DAYS" default:"30"`
	SessionTTL       time.Duration `envconfig:"RAG_SESSION_TTL" default:"2h"`
	BuildTimeout     time.Duration `envconfig:"RAG_BUILD_TIMEOUT" default:"90s"`
}

// NewsConfig represents news collection configuration
type NewsConfig struct {
	NaverEnabled     bool          `envconfig:"NEWS_NAVER_ENABLED" default:"true"`
	NaverMaxPages    int           `envconfig:"NEWS_NAVER_MAX_PAGES" default:"5"`
	GoogleRSSEnabled bool          `envconfig:"NEWS_GOOGLE_RSS_ENABLED" default:"true"`
	MaxItems         int           `envconfig:"NEWS_MAX_ITEMS" default:"60"`
	CacheTTL         time.Duration `envconfig:"NEWS_CACHE_TTL" default:"15m"`
	Watchlist        []string      `envconfig:"NEWS_WATCHLIST"`
	PrefetchInterval time.Duration `envconfig:"NEWS_PREFETCH_INTERVAL" default:"30m"`
}

// MarketConfig represents financial metric sources
type MarketConfig struct {
	Tickers         map[string]string `envconfig:"MARKET_TICKERS"` // name:code pairs
	TickerLookup    bool              `envconfig:"MARKET_TICKER_LOOKUP" default:"true"`
	ChartDays       int               `envconfig:"MARKET_CHART_DAYS" default:"260"`
	NaverFinanceURL string            `envconfig:"MARKET_NAVER_FINANCE_URL" default:"https://finance.naver.com/item/main.naver"`
	ChartURL        string            `envconfig:"MARKET_CHART_URL" default:"https://fchart.stock.naver.com/sise.nhn"`
	AutocompleteURL string            `envconfig:"MARKET_AUTOCOMPLETE_URL" default:"https://ac.stock.naver.com/ac"`
}

// HTTPConfig applies to every outbound scraper request
type HTTPConfig struct {
	Timeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"HTTP_MAX_RETRIES" default:"2"`
	RateLimit  float64       `envconfig:"HTTP_RATE_LIMIT" default:"5"` // requests per second
	UserAgent  string        `envconfig:"HTTP_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"`
}

// TelegramConfig represents Telegram bot configuration
type TelegramConfig struct {
	BotToken     string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	Debug        bool    `envconfig:"TELEGRAM_DEBUG" default:"false"`
	AllowedChats []int64 `envconfig:"TELEGRAM_ALLOWED_CHATS"`
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Enabled        bool   `envconfig:"DB_ENABLED" default:"false"`
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	Name           string `envconfig:"DB_NAME" default:"stockqa"`
	User           string `envconfig:"DB_USER" default:"postgres"`
	Password       string `envconfig:"DB_PASSWORD"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_PATH" default:"migrations/postgres"`
}

// RedisConfig represents redis cache and lock configuration
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// ClickHouseConfig represents analytics storage
type ClickHouseConfig struct {
	Enabled        bool          `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host           string        `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port           int           `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database       string        `envconfig:"CLICKHOUSE_DATABASE" default:"stockqa"`
	User           string        `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password       string        `envconfig:"CLICKHOUSE_PASSWORD"`
	MigrationsPath string        `envconfig:"CLICKHOUSE_MIGRATIONS_PATH" default:"migrations/clickhouse"`
	BatchSize      int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"100"`
	FlushInterval  time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"10s"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:"logs/bot.log"`
}

// HealthConfig represents the probe server
type HealthConfig struct {
	Enabled bool   `envconfig:"HEALTH_ENABLED" default:"true"`
	Port    string `envconfig:"HEALTH_PORT" default:"8080"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "openai":
		if c.AI.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for AI_PROVIDER=openai")
		}
	case "deepseek":
		if c.AI.DeepSeekAPIKey == "" {
			return fmt.Errorf("DEEPSEEK_API_KEY is required for AI_PROVIDER=deepseek")
		}
	case "claude":
		if c.AI.ClaudeAPIKey == "" {
			return fmt.Errorf("CLAUDE_API_KEY is required for AI_PROVIDER=claude")
		}
	case "gemini":
		if c.AI.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for AI_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown AI provider %q", c.AI.Provider)
	}
	if c.AI.GenerationTimeout <= 0 {
		return fmt.Errorf("generation timeout must be positive")
	}

	switch c.Embedding.Provider {
	case "openai":
		if c.AI.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for EMBEDDING_PROVIDER=openai")
		}
		if c.Embedding.Timeout <= 0 {
			return fmt.Errorf("embedding timeout must be positive")
		}
	case "hashing":
		if c.Embedding.Dimension <= 0 {
			return fmt.Errorf("embedding dimension must be positive")
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}

	if c.RAG.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	if c.RAG.ChunkSize <= 0 || c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, chunk_size)")
	}
	if c.RAG.DedupThreshold <= 0 || c.RAG.DedupThreshold > 1 {
		return fmt.Errorf("dedup threshold must be in (0, 1]")
	}
	if c.RAG.MaxDayWindow < 1 || c.RAG.MaxDayWindow > 30 {
		return fmt.Errorf("max day window must be between 1 and 30")
	}
	if c.RAG.DefaultDayWindow < 1 || c.RAG.DefaultDayWindow > c.RAG.MaxDayWindow {
		return fmt.Errorf("default day window must be between 1 and %d", c.RAG.MaxDayWindow)
	}

	if !c.News.NaverEnabled && !c.News.GoogleRSSEnabled {
		return fmt.Errorf("at least one news provider must be enabled")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}

	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetDSN returns ClickHouse connection string
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s?dial_timeout=5s",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// EnabledNewsProviders returns names of enabled news providers
func (c *NewsConfig) EnabledNewsProviders() []string {
	var providers []string
	if c.NaverEnabled {
		providers = append(providers, "naver")
	}
	if c.GoogleRSSEnabled {
		providers = append(providers, "google_rss")
	}
	return providers
}

// IsChatAllowed reports whether chat may use the bot; an empty list allows all
func (c *TelegramConfig) IsChatAllowed(chatID int64) bool {
	if len(c.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

// ClampDays bounds a requested day window, falling back to the default for non-positive input
func (c *RAGConfig) ClampDays(days int) int {
	if days <= 0 {
		return c.DefaultDayWindow
	}
	if days > c.MaxDayWindow {
		return c.MaxDayWindow
	}
	return days
}

// String hides secrets when config is logged
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ai=%s embedding=%s top_k=%d chunk=%d/%d dedup=%.2f news=%v",
		c.AI.Provider, c.Embedding.Provider, c.RAG.TopK, c.RAG.ChunkSize, c.RAG.ChunkOverlap,
		c.RAG.DedupThreshold, c.News.EnabledNewsProviders())
	fmt.Fprintf(&b, " db=%t redis=%t clickhouse=%t", c.Database.Enabled, c.Redis.Enabled, c.ClickHouse.Enabled)
	return b.String()
}
