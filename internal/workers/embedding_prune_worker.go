package workers

import (
	"context"

	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// EmbeddingPruner deletes stored vectors unused for a number of days
type EmbeddingPruner interface {
	Prune(ctx context.Context, days int) (int64, error)
}

// EmbeddingPruneWorker bounds the persistent embedding store. News text
// rarely repeats after its window, so old vectors are dead weight.
type EmbeddingPruneWorker struct {
	repo      EmbeddingPruner
	retention int
}

// NewEmbeddingPruneWorker creates prune worker; retention is in days
func NewEmbeddingPruneWorker(repo EmbeddingPruner, retention int) *EmbeddingPruneWorker {
	if retention <= 0 {
		retention = 90
	}
	return &EmbeddingPruneWorker{repo: repo, retention: retention}
}

func (w *EmbeddingPruneWorker) Name() string {
	return "embedding_prune"
}

func (w *EmbeddingPruneWorker) Run(ctx context.Context) error {
	removed, err := w.repo.Prune(ctx, w.retention)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Info("🧹 Pruned stale embeddings",
			zap.Int64("removed", removed),
			zap.Int("retention_days", w.retention),
		)
	}
	return nil
}
