package news

import (
	"context"

	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// Provider represents a news source for one company
type Provider interface {
	// GetName returns provider name
	GetName() string

	// IsEnabled returns whether provider is enabled
	IsEnabled() bool

	// FetchNews returns items published within the last days, most relevant first
	FetchNews(ctx context.Context, company string, days int) ([]models.NewsItem, error)
}

// Fetcher is the HTTP surface providers need
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}
