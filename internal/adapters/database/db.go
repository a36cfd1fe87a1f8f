package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/adapters/config"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// DB wraps an sqlx connection pool
type DB struct {
	conn   *sqlx.DB
	driver string
}

// New connects to PostgreSQL (embedding cache, news archive)
func New(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	db, err := Connect(ctx, "postgres", cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	logger.Info("🗄️ database connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
	)

	return db, nil
}

// NewClickHouse connects to ClickHouse (analytics metrics)
func NewClickHouse(ctx context.Context, cfg *config.ClickHouseConfig) (*DB, error) {
	db, err := Connect(ctx, "clickhouse", cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	logger.Info("📊 clickhouse connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return db, nil
}

// Connect opens a pool for driver ("postgres" or "clickhouse") and pings it
func Connect(ctx context.Context, driver, dsn string) (*DB, error) {
	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn, driver: driver}, nil
}

// Close closes database connection
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	logger.Info("closing database connection", zap.String("driver", db.driver))
	return db.conn.Close()
}

// Conn returns underlying *sql.DB (migrations)
func (db *DB) Conn() *sql.DB {
	return db.conn.DB
}

// DB returns sqlx handle for repositories
func (db *DB) DB() *sqlx.DB {
	return db.conn
}

// Health pings the database with a short timeout
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", db.driver, err)
	}
	return nil
}
