package news

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

const (
	googleNewsRSSURL = "https://news.google.com/rss/search"
	rssSourceName    = "google_rss"
)

// RSSProvider reads the Google News search feed for a company
type RSSProvider struct {
	fetcher Fetcher
	parser  *gofeed.Parser
	enabled bool
	baseURL string
	now     func() time.Time
}

// NewRSSProvider creates Google News RSS provider
func NewRSSProvider(fetcher Fetcher, enabled bool) *RSSProvider {
	return &RSSProvider{
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
		enabled: enabled,
		baseURL: googleNewsRSSURL,
		now:     time.Now,
	}
}

func (p *RSSProvider) GetName() string {
	return rssSourceName
}

func (p *RSSProvider) IsEnabled() bool {
	return p.enabled
}

// FetchNews returns feed items newer than the day window, in feed order
func (p *RSSProvider) FetchNews(ctx context.Context, company string, days int) ([]models.NewsItem, error) {
	if !p.enabled {
		return nil, nil
	}

	body, err := p.fetcher.Get(ctx, p.feedURL(company, days), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rss feed: %w", err)
	}

	feed, err := p.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rss feed: %w", err)
	}

	cutoff := p.now().AddDate(0, 0, -days)
	items := make([]models.NewsItem, 0, len(feed.Items))

	for _, entry := range feed.Items {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}

		item := models.NewsItem{
			Source:  rssSourceName,
			Title:   title,
			Link:    entry.Link,
			Content: stripHTML(entry.Description),
		}
		if entry.PublishedParsed != nil {
			if entry.PublishedParsed.Before(cutoff) {
				continue
			}
			item.PublishedAt = *entry.PublishedParsed
		}
		items = append(items, item)
	}

	logger.Debug("rss news fetched",
		zap.String("company", company),
		zap.Int("items", len(items)),
	)

	return items, nil
}

func (p *RSSProvider) feedURL(company string, days int) string {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s when:%dd", company, days))
	q.Set("hl", "ko")
	q.Set("gl", "KR")
	q.Set("ceid", "KR:ko")
	return p.baseURL + "?" + q.Encode()
}

// stripHTML flattens the HTML snippets feeds put in descriptions
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
