package news

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/stock-qa-bot/internal/adapters/redis"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/metrics"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// ErrNoProviders is returned when every provider is disabled
var ErrNoProviders = errors.New("no news providers enabled")

const lockWait = 3 * time.Second

// Options configures the aggregator's optional collaborators
type Options struct {
	Cache    Cache
	Archive  *Archive
	Locks    redis.LockFactory
	Metrics  metrics.Buffer
	MaxItems int
}

// Aggregator fans out to all enabled providers and merges their results
// in provider order. One failing provider does not fail the fetch.
type Aggregator struct {
	providers []Provider
	cache     Cache
	archive   *Archive
	locks     redis.LockFactory
	metrics   metrics.Buffer
	maxItems  int
}

// NewAggregator creates new news aggregator
func NewAggregator(providers []Provider, opts Options) *Aggregator {
	if opts.Locks == nil {
		opts.Locks = redis.NewNoopLockFactory()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NopBuffer{}
	}
	return &Aggregator{
		providers: providers,
		cache:     opts.Cache,
		archive:   opts.Archive,
		locks:     opts.Locks,
		metrics:   opts.Metrics,
		maxItems:  opts.MaxItems,
	}
}

// FetchNews returns news for company within days. Cached lists are served
// first; concurrent fetches of the same company across instances are
// collapsed with a lock.
func (a *Aggregator) FetchNews(ctx context.Context, company string, days int) ([]models.NewsItem, error) {
	if items, ok := a.fromCache(ctx, company, days); ok {
		return items, nil
	}

	lock := a.locks.NewLock("news:"+company, 30*time.Second)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		logger.Warn("news lock failed, fetching without it", zap.String("company", company), zap.Error(err))
	}
	if acquired {
		defer func() { _ = lock.Release(context.Background()) }()
	} else if items, ok := a.waitForPeer(ctx, company, days); ok {
		return items, nil
	}

	items, err := a.fetchProviders(ctx, company, days)
	if err != nil {
		if archived, ok := a.fromArchive(ctx, company, days); ok {
			logger.Warn("all news providers failed, serving archive",
				zap.String("company", company),
				zap.Int("items", len(archived)),
				zap.Error(err),
			)
			return archived, nil
		}
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, company, days, items); err != nil {
			logger.Warn("failed to cache news", zap.String("company", company), zap.Error(err))
		}
	}
	if a.archive != nil {
		if _, err := a.archive.Save(ctx, company, items); err != nil {
			logger.Warn("failed to archive news", zap.String("company", company), zap.Error(err))
		}
	}

	return items, nil
}

func (a *Aggregator) fetchProviders(ctx context.Context, company string, days int) ([]models.NewsItem, error) {
	enabled := make([]Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if p.IsEnabled() {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoProviders
	}

	results := make([][]models.NewsItem, len(enabled))
	errs := make([]error, len(enabled))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range enabled {
		g.Go(func() error {
			start := time.Now()
			items, err := p.FetchNews(gctx, company, days)

			mu.Lock()
			results[i] = items
			errs[i] = err
			mu.Unlock()

			a.record(p.GetName(), company, len(items), false, err == nil, time.Since(start))
			if err != nil {
				logger.Warn("news provider failed",
					zap.String("provider", p.GetName()),
					zap.String("company", company),
					zap.Error(err),
				)
			}
			// provider errors are non-fatal
			return nil
		})
	}
	_ = g.Wait()

	var (
		merged []models.NewsItem
		failed []error
	)
	for i := range enabled {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("%s: %w", enabled[i].GetName(), errs[i]))
			continue
		}
		merged = append(merged, results[i]...)
	}

	if len(failed) == len(enabled) {
		return nil, fmt.Errorf("all news providers failed: %w", errors.Join(failed...))
	}

	if a.maxItems > 0 && len(merged) > a.maxItems {
		merged = merged[:a.maxItems]
	}

	logger.Info("📰 news collected",
		zap.String("company", company),
		zap.Int("days", days),
		zap.Int("items", len(merged)),
		zap.Int("failed_providers", len(failed)),
	)

	return merged, nil
}

func (a *Aggregator) fromCache(ctx context.Context, company string, days int) ([]models.NewsItem, bool) {
	if a.cache == nil {
		return nil, false
	}
	items, ok := a.cache.Get(ctx, company, days)
	if ok {
		a.record("cache", company, len(items), true, true, 0)
		logger.Debug("news served from cache", zap.String("company", company), zap.Int("items", len(items)))
	}
	return items, ok
}

// waitForPeer polls the cache while another instance holds the fetch lock
func (a *Aggregator) waitForPeer(ctx context.Context, company string, days int) ([]models.NewsItem, bool) {
	if a.cache == nil {
		return nil, false
	}

	deadline := time.NewTimer(lockWait)
	defer deadline.Stop()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-deadline.C:
			return nil, false
		case <-tick.C:
			if items, ok := a.fromCache(ctx, company, days); ok {
				return items, true
			}
		}
	}
}

func (a *Aggregator) fromArchive(ctx context.Context, company string, days int) ([]models.NewsItem, bool) {
	if a.archive == nil {
		return nil, false
	}
	items, err := a.archive.Recent(ctx, company, time.Duration(days)*24*time.Hour, a.maxItems)
	if err != nil || len(items) == 0 {
		return nil, false
	}
	return items, true
}

func (a *Aggregator) record(provider, company string, items int, cacheHit, success bool, took time.Duration) {
	_ = a.metrics.Add(&metrics.NewsFetchMetric{
		Timestamp:  time.Now(),
		Provider:   provider,
		Company:    company,
		Items:      items,
		CacheHit:   cacheHit,
		Success:    success,
		DurationMs: took.Milliseconds(),
	})
}
