// Package conversation builds per-company retrieval sessions and answers
// questions grounded in the retrieved news and financial metrics.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/stock-qa-bot/internal/adapters/ai"
	"github.com/selivandex/stock-qa-bot/internal/chunking"
	"github.com/selivandex/stock-qa-bot/internal/dedup"
	"github.com/selivandex/stock-qa-bot/internal/financial"
	"github.com/selivandex/stock-qa-bot/internal/index"
	"github.com/selivandex/stock-qa-bot/pkg/embeddings"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/metrics"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

const (
	DefaultTopK      = 4
	DefaultDayWindow = 7
	MaxDayWindow     = 30
)

// NewsSource returns recent articles about a company
type NewsSource interface {
	FetchNews(ctx context.Context, company string, days int) ([]models.NewsItem, error)
}

// MetricsSource returns the resolved ticker and one candidate per market source
type MetricsSource interface {
	FetchCandidates(ctx context.Context, company string) (string, []financial.Candidate, error)
}

// ChatModel generates one reply; it must not retry internally
type ChatModel interface {
	Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (string, error)
}

// Config holds engine tunables
type Config struct {
	TopK              int
	DefaultDayWindow  int
	MaxDayWindow      int
	GenerationTimeout time.Duration
	QueryTimeout      time.Duration // bounds query embedding in Ask
}

// Deps are the collaborators of the engine. Metrics is optional.
type Deps struct {
	News     NewsSource
	Market   MetricsSource
	Dedup    *dedup.Deduplicator
	Splitter *chunking.Splitter
	Embedder embeddings.Embedder
	LLM      ChatModel
	Metrics  metrics.Buffer
}

// Engine creates independent sessions. It holds no per-session state.
type Engine struct {
	cfg  Config
	deps Deps
}

// NewEngine validates dependencies and fills config defaults
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.News == nil || deps.Market == nil || deps.Splitter == nil || deps.Embedder == nil || deps.LLM == nil {
		return nil, fmt.Errorf("conversation engine requires news, market, splitter, embedder and llm")
	}
	if deps.Dedup == nil {
		deps.Dedup = dedup.New(dedup.DefaultThreshold)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopBuffer{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxDayWindow <= 0 || cfg.MaxDayWindow > MaxDayWindow {
		cfg.MaxDayWindow = MaxDayWindow
	}
	if cfg.DefaultDayWindow <= 0 || cfg.DefaultDayWindow > cfg.MaxDayWindow {
		cfg.DefaultDayWindow = DefaultDayWindow
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 60 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 20 * time.Second
	}

	return &Engine{cfg: cfg, deps: deps}, nil
}

func (e *Engine) clampDays(days int) int {
	if days <= 0 {
		return e.cfg.DefaultDayWindow
	}
	if days > e.cfg.MaxDayWindow {
		return e.cfg.MaxDayWindow
	}
	return days
}

// BuildReport describes what went into a session's index
type BuildReport struct {
	NewsFetched      int
	NewsKept         int
	NewsSuppressed   int
	MetricsAvailable int
	Documents        int
	Chunks           int
	NewsErr          error
	MetricsErr       error
	Duration         time.Duration
}

// Degraded reports whether any source failed or returned nothing
func (r BuildReport) Degraded() bool {
	return r.NewsErr != nil || r.MetricsErr != nil
}

// Empty reports whether nothing was indexed
func (r BuildReport) Empty() bool {
	return r.Chunks == 0
}

// StartSession gathers news and metrics for company, deduplicates, chunks and
// indexes them. Source failures degrade to empty input and are recorded on the
// report; an embedding failure aborts and no session is returned.
func (e *Engine) StartSession(ctx context.Context, company string, dayWindow int) (*Session, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, ErrEmptyCompany
	}
	days := e.clampDays(dayWindow)
	start := time.Now()
	sessionID := uuid.NewString()

	log := logger.Named("conversation").With(
		zap.String("session_id", sessionID),
		zap.String("company", company),
		zap.Int("days", days),
	)
	log.Info("🔎 Building session index")

	var (
		report  BuildReport
		news    []models.NewsItem
		ticker  string
		cands   []financial.Candidate
		fetchMu sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := e.deps.News.FetchNews(gctx, company, days)
		fetchMu.Lock()
		defer fetchMu.Unlock()
		switch {
		case err != nil:
			report.NewsErr = fmt.Errorf("%w: news: %v", ErrSourceUnavailable, err)
		case len(items) == 0:
			report.NewsErr = fmt.Errorf("%w: no news for %s in %d days", ErrSourceUnavailable, company, days)
		}
		news = items
		return nil
	})
	g.Go(func() error {
		tk, cs, err := e.deps.Market.FetchCandidates(gctx, company)
		fetchMu.Lock()
		defer fetchMu.Unlock()
		if err != nil {
			report.MetricsErr = fmt.Errorf("%w: metrics: %v", ErrSourceUnavailable, err)
		}
		ticker, cands = tk, cs
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("session build canceled: %w", err)
	}

	report.NewsFetched = len(news)
	deduped := e.deps.Dedup.Deduplicate(news)
	report.NewsKept = len(deduped.Items)
	report.NewsSuppressed = deduped.Suppressed

	record := financial.Merge(company, ticker, cands)
	report.MetricsAvailable = record.AvailableCount()
	if report.MetricsErr == nil && report.MetricsAvailable == 0 {
		report.MetricsErr = fmt.Errorf("%w: no metrics for %s", ErrSourceUnavailable, company)
	}

	docs := make([]chunking.Document, 0, len(deduped.Items)+1)
	for _, item := range deduped.Items {
		docs = append(docs, chunking.Document{
			Text:     item.Text(),
			Metadata: models.NewsMetadata(item.Link),
		})
	}
	if text := financial.RenderText(record); text != "" {
		docs = append(docs, chunking.Document{Text: text, Metadata: models.FinancialMetadata()})
	}
	report.Documents = len(docs)

	chunks := e.deps.Splitter.SplitDocuments(docs)
	report.Chunks = len(chunks)

	idx, err := index.Build(ctx, chunks, e.deps.Embedder)
	report.Duration = time.Since(start)
	e.recordBuild(sessionID, company, days, report, err == nil)
	if err != nil {
		log.Error("failed to build session index", zap.Error(err))
		return nil, fmt.Errorf("failed to build index for %s: %w", company, err)
	}

	if report.NewsErr != nil {
		log.Warn("news source degraded", zap.Error(report.NewsErr))
	}
	if report.MetricsErr != nil {
		log.Warn("metrics source degraded", zap.Error(report.MetricsErr))
	}
	if report.Empty() {
		log.Warn("session has empty corpus", zap.Error(ErrEmptyCorpus))
	}

	log.Info("✅ Session ready",
		zap.String("ticker", ticker),
		zap.Int("news_fetched", report.NewsFetched),
		zap.Int("news_kept", report.NewsKept),
		zap.Int("metrics", report.MetricsAvailable),
		zap.Int("chunks", report.Chunks),
		zap.Duration("duration", report.Duration),
	)

	return &Session{
		ID:        sessionID,
		Company:   company,
		Ticker:    ticker,
		DayWindow: days,
		CreatedAt: start,
		engine:    e,
		state:     StateReady,
		index:     idx,
		news:      deduped.Items,
		record:    record,
		report:    report,
	}, nil
}

func (e *Engine) recordBuild(sessionID, company string, days int, r BuildReport, ok bool) {
	if err := e.deps.Metrics.Add(&metrics.SessionBuildMetric{
		Timestamp:     time.Now(),
		SessionID:     sessionID,
		Company:       company,
		DayWindow:     days,
		NewsFetched:   r.NewsFetched,
		NewsKept:      r.NewsKept,
		MetricsFound:  r.MetricsAvailable,
		Chunks:        r.Chunks,
		NewsFailed:    r.NewsErr != nil,
		MetricsFailed: r.MetricsErr != nil,
		DurationMs:    r.Duration.Milliseconds(),
		Success:       ok,
	}); err != nil {
		logger.Warn("failed to record session build metric", zap.Error(err))
	}
}
