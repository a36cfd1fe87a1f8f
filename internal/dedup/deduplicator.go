// Package dedup removes near-duplicate news articles before indexing.
package dedup

import (
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/similarity"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// DefaultThreshold is the similarity above which a later article is dropped
const DefaultThreshold = 0.3

// Result holds surviving items and how many were suppressed
type Result struct {
	Items      []models.NewsItem
	Suppressed int
}

// Deduplicator keeps the earliest article of every near-duplicate group
type Deduplicator struct {
	Threshold float64
}

// New creates deduplicator; non-positive threshold falls back to DefaultThreshold
func New(threshold float64) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Deduplicator{Threshold: threshold}
}

// Deduplicate runs a single greedy pass. An article survives unless an earlier
// survivor has the same title or scores strictly above the threshold against it.
// Suppression is not transitive and input order is preserved.
func (d *Deduplicator) Deduplicate(items []models.NewsItem) Result {
	if len(items) <= 1 {
		return Result{Items: items}
	}

	docs := make([]string, len(items))
	for i, item := range items {
		docs[i] = item.Title + " " + item.Content
	}

	matrix, err := similarity.Compute(docs)
	if err != nil {
		// Fail open: better to index duplicates than lose the news
		logger.Warn("⚠️ News similarity failed, skipping deduplication",
			zap.Int("items", len(items)),
			zap.Error(err),
		)
		return Result{Items: items}
	}

	suppressed := make([]bool, len(items))
	for i := range items {
		if suppressed[i] {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if suppressed[j] {
				continue
			}
			if items[i].Title == items[j].Title || matrix.At(i, j) > d.Threshold {
				suppressed[j] = true
			}
		}
	}

	kept := make([]models.NewsItem, 0, len(items))
	for i, item := range items {
		if !suppressed[i] {
			kept = append(kept, item)
		}
	}

	removed := len(items) - len(kept)
	if removed > 0 {
		logger.Debug("News deduplicated",
			zap.Int("input", len(items)),
			zap.Int("kept", len(kept)),
			zap.Int("suppressed", removed),
		)
	}

	return Result{Items: kept, Suppressed: removed}
}
