package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/metrics"
)

// maxBatchSize is the OpenAI limit of inputs per embeddings request
const maxBatchSize = 2048

// Repository stores embeddings permanently keyed by text hash.
// Embeddings are deterministic per model so they never expire.
type Repository interface {
	Get(ctx context.Context, textHash, model string) ([]float32, bool)
	Set(ctx context.Context, textHash string, embedding []float32, model string, textLength int) error
}

// Client embeds text with the OpenAI API, reusing stored vectors when possible
type Client struct {
	openaiClient  *openai.Client
	repository    Repository
	metricsBuffer metrics.Buffer
	model         openai.EmbeddingModel
	maxRetries    int
	backoff       time.Duration
	cacheHits     int64
	cacheMisses   int64
}

// Config for embedding client
type Config struct {
	OpenAIClient  *openai.Client
	Repository    Repository            // Optional persistent cache
	MetricsBuffer metrics.Buffer        // Optional analytics sink
	Model         openai.EmbeddingModel // Default: text-embedding-3-small
	MaxRetries    int                   // Attempts per request, default 3
	Backoff       time.Duration         // Base backoff, doubled per attempt, default 1s
}

// NewOpenAIClient builds an OpenAI client whose HTTP requests are bounded by timeout
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(clientCfg)
}

// NewClient creates embedding client
func NewClient(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = openai.SmallEmbedding3
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	if cfg.Repository != nil {
		logger.Info("embedding cache enabled (Postgres repository)", zap.String("model", string(model)))
	}

	return &Client{
		openaiClient:  cfg.OpenAIClient,
		repository:    cfg.Repository,
		metricsBuffer: cfg.MetricsBuffer,
		model:         model,
		maxRetries:    retries,
		backoff:       backoff,
	}
}

// EmbedQuery embeds a single search query
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts in batches, calling the API only for texts not found in the repository
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.openaiClient == nil && c.repository == nil {
		return nil, fmt.Errorf("OpenAI embedding client not configured - please set OPENAI_API_KEY")
	}

	result := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		var (
			missingIdx   []int
			missingTexts []string
		)
		for i := start; i < end; i++ {
			if vec, ok := c.lookup(ctx, texts[i]); ok {
				result[i] = vec
				continue
			}
			missingIdx = append(missingIdx, i)
			missingTexts = append(missingTexts, texts[i])
		}

		if len(missingTexts) == 0 {
			continue
		}
		if c.openaiClient == nil {
			return nil, fmt.Errorf("OpenAI embedding client not configured - please set OPENAI_API_KEY")
		}

		vectors, err := c.generateWithRetry(ctx, missingTexts)
		if err != nil {
			return nil, fmt.Errorf("embedding API failed after retries: %w", err)
		}
		if len(vectors) != len(missingTexts) {
			return nil, fmt.Errorf("embedding response size mismatch: expected %d, got %d", len(missingTexts), len(vectors))
		}

		for j, vec := range vectors {
			result[missingIdx[j]] = vec
			c.store(ctx, missingTexts[j], vec)
		}

		logger.Debug("embedding batch generated",
			zap.Int("batch_size", end-start),
			zap.Int("cached", end-start-len(missingTexts)),
			zap.Int("generated", len(missingTexts)),
		)
	}

	return result, nil
}

func (c *Client) lookup(ctx context.Context, text string) ([]float32, bool) {
	if c.repository == nil {
		return nil, false
	}

	hash := hashText(text)
	vec, found := c.repository.Get(ctx, hash, string(c.model))
	if found {
		atomic.AddInt64(&c.cacheHits, 1)
	} else {
		atomic.AddInt64(&c.cacheMisses, 1)
	}
	c.record(hash, len(text), found)
	return vec, found
}

func (c *Client) store(ctx context.Context, text string, vec []float32) {
	if c.repository == nil {
		return
	}
	if err := c.repository.Set(ctx, hashText(text), vec, string(c.model), len(text)); err != nil {
		logger.Warn("failed to store embedding in repository", zap.Error(err))
	}
}

func (c *Client) record(hash string, textLen int, hit bool) {
	if c.metricsBuffer == nil {
		return
	}
	if err := c.metricsBuffer.Add(&metrics.EmbeddingCacheMetric{
		Timestamp:  time.Now(),
		TextHash:   hash[:16],
		TextLength: textLen,
		Model:      string(c.model),
		CacheHit:   hit,
	}); err != nil {
		logger.Error("failed to add embedding cache metric", zap.Error(err))
	}
}

// generateWithRetry calls the embeddings API with exponential backoff
func (c *Client) generateWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(math.Pow(2, float64(attempt-1)))
			logger.Debug("retrying OpenAI embedding request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries),
				zap.Duration("backoff", wait),
			)

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}

		resp, err := c.openaiClient.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: c.model,
			Input: texts,
		})
		if err == nil {
			vectors := make([][]float32, len(resp.Data))
			for _, data := range resp.Data {
				if data.Index < 0 || data.Index >= len(vectors) {
					return nil, fmt.Errorf("embedding index %d out of range", data.Index)
				}
				vectors[data.Index] = data.Embedding
			}
			return vectors, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			logger.Warn("non-retryable OpenAI error, aborting", zap.Error(err))
			return nil, err
		}

		logger.Warn("retryable OpenAI error encountered",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// isRetryableError reports rate limits, timeouts, resets and 5xx
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "timeout", "deadline exceeded", "connection refused", "connection reset", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CacheStats returns repository hit and miss counters
func (c *Client) CacheStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.cacheHits), atomic.LoadInt64(&c.cacheMisses)
}

// LogCacheStats logs repository hit rate
func (c *Client) LogCacheStats() {
	hits, misses := c.CacheStats()
	total := hits + misses
	if c.repository == nil || total == 0 {
		return
	}

	logger.Info("📊 Embedding cache stats",
		zap.Int64("hits", hits),
		zap.Int64("misses", misses),
		zap.Float64("hit_rate_%", float64(hits)/float64(total)*100),
	)
}
