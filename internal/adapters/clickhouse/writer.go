package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/metrics"
)

// Writer inserts metric batches into ClickHouse tables
type Writer struct {
	db *sqlx.DB
}

// NewWriter creates ClickHouse metrics writer
func NewWriter(db *sqlx.DB) *Writer {
	return &Writer{db: db}
}

// Write inserts all rows for one table inside a single batch
func (w *Writer) Write(ctx context.Context, tableName string, rows []metrics.Metric) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	query := insertQuery(tableName, len(rows[0].Values()))
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert into %s: %w", tableName, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Values()...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert into %s: %w", tableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s batch: %w", tableName, err)
	}

	logger.Debug("saved metrics to ClickHouse",
		zap.String("table", tableName),
		zap.Int("count", len(rows)),
	)

	return nil
}

// Close is a no-op; the connection pool is owned by the caller
func (w *Writer) Close() error {
	return nil
}

func insertQuery(table string, columns int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", columns), ", ")
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders)
}
