package testdb

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/selivandex/stock-qa-bot/internal/adapters/database"
)

// Tables are truncated before and after every test using Setup
var Tables = []string{"embedding_cache", "news_items"}

// Setup connects to the Postgres named by TEST_DATABASE_URL, applies migrations
// and empties the tables. The test is skipped when no database is configured.
func Setup(t *testing.T) *database.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, "postgres", dsn)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	if err := db.RunMigrations(MigrationsPath()); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	Truncate(t, db)
	t.Cleanup(func() {
		Truncate(t, db)
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close database: %v", err)
		}
	})

	return db
}

// Truncate removes all rows from the test tables
func Truncate(t *testing.T, db *database.DB) {
	t.Helper()

	for _, table := range Tables {
		if _, err := db.DB().Exec("TRUNCATE TABLE " + table); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}

// MigrationsPath returns absolute path of the Postgres migrations directory
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations", "postgres")
}
