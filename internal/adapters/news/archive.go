package news

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// Archive keeps every fetched article in Postgres for later inspection
type Archive struct {
	db *sqlx.DB
}

// NewArchive creates Postgres news archive
func NewArchive(db *sqlx.DB) *Archive {
	return &Archive{db: db}
}

// Save upserts items in one statement using unnest over parallel arrays.
// Items without a link are skipped; repeated links keep one row.
func (a *Archive) Save(ctx context.Context, company string, items []models.NewsItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	sources := make([]string, len(items))
	titles := make([]string, len(items))
	links := make([]string, len(items))
	contents := make([]string, len(items))
	published := make([]*time.Time, len(items))

	for i, item := range items {
		sources[i] = item.Source
		titles[i] = item.Title
		links[i] = item.Link
		contents[i] = item.Content
		if !item.PublishedAt.IsZero() {
			ts := item.PublishedAt
			published[i] = &ts
		}
	}

	res, err := a.db.ExecContext(ctx, `
		INSERT INTO news_items (company, source, title, link, content, published_at)
		SELECT DISTINCT ON (l) $1, s, t, l, c, p::timestamptz
		FROM unnest($2::text[], $3::text[], $4::text[], $5::text[], $6::text[]) AS u(s, t, l, c, p)
		WHERE l <> ''
		ON CONFLICT (company, link) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			published_at = COALESCE(EXCLUDED.published_at, news_items.published_at),
			fetched_at = NOW()
	`, company,
		pq.Array(sources),
		pq.Array(titles),
		pq.Array(links),
		pq.Array(contents),
		pq.Array(formatTimes(published)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to archive news: %w", err)
	}

	saved, _ := res.RowsAffected()
	logger.Debug("archived news",
		zap.String("company", company),
		zap.Int("total", len(items)),
		zap.Int64("saved", saved),
	)

	return saved, nil
}

// Recent returns archived items for company fetched within since, newest first
func (a *Archive) Recent(ctx context.Context, company string, since time.Duration, limit int) ([]models.NewsItem, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []struct {
		Source      string     `db:"source"`
		Title       string     `db:"title"`
		Link        string     `db:"link"`
		Content     string     `db:"content"`
		PublishedAt *time.Time `db:"published_at"`
	}

	err := a.db.SelectContext(ctx, &rows, `
		SELECT source, title, link, content, published_at
		FROM news_items
		WHERE company = $1 AND fetched_at > $2
		ORDER BY fetched_at DESC, id
		LIMIT $3
	`, company, time.Now().Add(-since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived news: %w", err)
	}

	items := make([]models.NewsItem, 0, len(rows))
	for _, r := range rows {
		item := models.NewsItem{Source: r.Source, Title: r.Title, Link: r.Link, Content: r.Content}
		if r.PublishedAt != nil {
			item.PublishedAt = *r.PublishedAt
		}
		items = append(items, item)
	}

	return items, nil
}

// formatTimes renders timestamps for a text[] parameter; nil becomes SQL NULL
func formatTimes(ts []*time.Time) []*string {
	out := make([]*string, len(ts))
	for i, t := range ts {
		if t == nil {
			continue
		}
		s := t.UTC().Format(time.RFC3339Nano)
		out[i] = &s
	}
	return out
}
