package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// NewsFetcher is the cached news path the bot itself uses
type NewsFetcher interface {
	FetchNews(ctx context.Context, company string, days int) ([]models.NewsItem, error)
}

// NewsPrefetchWorker keeps the news cache warm for a watchlist so the first
// /analyze of a popular company does not wait on scraping
type NewsPrefetchWorker struct {
	fetcher   NewsFetcher
	watchlist []string
	days      int
}

// NewNewsPrefetchWorker creates prefetch worker
func NewNewsPrefetchWorker(fetcher NewsFetcher, watchlist []string, days int) *NewsPrefetchWorker {
	return &NewsPrefetchWorker{
		fetcher:   fetcher,
		watchlist: watchlist,
		days:      days,
	}
}

func (w *NewsPrefetchWorker) Name() string {
	return "news_prefetch"
}

// Run fetches every watchlist company in turn. Per-company failures are
// logged; the run fails only when every company failed.
func (w *NewsPrefetchWorker) Run(ctx context.Context) error {
	if len(w.watchlist) == 0 {
		return nil
	}

	var failed int
	for _, company := range w.watchlist {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		items, err := w.fetcher.FetchNews(ctx, company, w.days)
		if err != nil {
			failed++
			logger.Warn("news prefetch failed",
				zap.String("company", company),
				zap.Error(err),
			)
			continue
		}

		logger.Debug("news prefetched",
			zap.String("company", company),
			zap.Int("items", len(items)),
		)
	}

	if failed == len(w.watchlist) {
		return fmt.Errorf("news prefetch failed for all %d companies", failed)
	}

	logger.Info("📰 News prefetch completed",
		zap.Int("companies", len(w.watchlist)),
		zap.Int("failed", failed),
	)

	return nil
}
