package embeddings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// Repository stores embeddings permanently in Postgres, keyed by text hash
// and model. Vectors are deterministic per model so entries never expire.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new Postgres embedding repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the stored vector and bumps its usage counters
func (r *Repository) Get(ctx context.Context, textHash, model string) ([]float32, bool) {
	query := `
		UPDATE embedding_cache
		SET last_used = NOW(), hit_count = hit_count + 1
		WHERE text_hash = $1 AND model = $2
		RETURNING embedding
	`

	var vec pq.Float32Array
	err := r.db.QueryRowxContext(ctx, query, textHash, model).Scan(&vec)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("embedding lookup failed", zap.Error(err))
		}
		return nil, false
	}

	return []float32(vec), true
}

// Set stores vector; existing rows only get their timestamp refreshed
func (r *Repository) Set(ctx context.Context, textHash string, embedding []float32, model string, textLength int) error {
	query := `
		INSERT INTO embedding_cache (text_hash, model, embedding, text_length)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (text_hash, model) DO UPDATE SET last_used = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, textHash, model, pq.Float32Array(embedding), textLength); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	return nil
}

// Count returns number of stored vectors
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM embedding_cache`); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}

// Prune removes vectors unused for more than days
func (r *Repository) Prune(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM embedding_cache WHERE last_used < NOW() - make_interval(days => $1)`, days)
	if err != nil {
		return 0, fmt.Errorf("failed to prune embeddings: %w", err)
	}
	return res.RowsAffected()
}
