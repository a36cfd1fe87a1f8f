package news

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/selivandex/stock-qa-bot/pkg/models"
)

type fakeProvider struct {
	name    string
	enabled bool
	items   []models.NewsItem
	err     error
	delay   time.Duration
	calls   int
}

func (p *fakeProvider) GetName() string  { return p.name }
func (p *fakeProvider) IsEnabled() bool { return p.enabled }

func (p *fakeProvider) FetchNews(ctx context.Context, _ string, _ int) ([]models.NewsItem, error) {
	p.calls++
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.items, p.err
}

type memoryCache struct {
	data map[string][]models.NewsItem
}

func (c *memoryCache) Get(_ context.Context, company string, days int) ([]models.NewsItem, bool) {
	items, ok := c.data[cacheKey(company, days)]
	return items, ok
}

func (c *memoryCache) Set(_ context.Context, company string, days int, items []models.NewsItem) error {
	c.data[cacheKey(company, days)] = items
	return nil
}

func titles(items []models.NewsItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}

func TestAggregator_PreservesProviderOrder(t *testing.T) {
	slow := &fakeProvider{name: "naver", enabled: true, delay: 20 * time.Millisecond,
		items: []models.NewsItem{{Title: "a"}, {Title: "b"}}}
	fast := &fakeProvider{name: "rss", enabled: true, items: []models.NewsItem{{Title: "c"}}}
	off := &fakeProvider{name: "off", items: []models.NewsItem{{Title: "x"}}}

	agg := NewAggregator([]Provider{slow, fast, off}, Options{})
	items, err := agg.FetchNews(context.Background(), "삼성전자", 7)
	if err != nil {
		t.Fatalf("FetchNews: %v", err)
	}

	got := titles(items)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if off.calls != 0 {
		t.Error("disabled provider was called")
	}
}

func TestAggregator_PartialAndTotalFailure(t *testing.T) {
	ok := &fakeProvider{name: "rss", enabled: true, items: []models.NewsItem{{Title: "c"}}}
	bad := &fakeProvider{name: "naver", enabled: true, err: errors.New("blocked")}

	items, err := NewAggregator([]Provider{bad, ok}, Options{}).FetchNews(context.Background(), "카카오", 7)
	if err != nil || len(items) != 1 {
		t.Fatalf("partial failure: items=%v err=%v", items, err)
	}

	_, err = NewAggregator([]Provider{bad}, Options{}).FetchNews(context.Background(), "카카오", 7)
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}

	_, err = NewAggregator(nil, Options{}).FetchNews(context.Background(), "카카오", 7)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestAggregator_CacheAndLimit(t *testing.T) {
	p := &fakeProvider{name: "naver", enabled: true,
		items: []models.NewsItem{{Title: "a"}, {Title: "b"}, {Title: "c"}}}
	cache := &memoryCache{data: map[string][]models.NewsItem{}}
	agg := NewAggregator([]Provider{p}, Options{Cache: cache, MaxItems: 2})

	first, err := agg.FetchNews(context.Background(), "현대차", 7)
	if err != nil {
		t.Fatalf("FetchNews: %v", err)
	}
	second, err := agg.FetchNews(context.Background(), "현대차", 7)
	if err != nil {
		t.Fatalf("FetchNews: %v", err)
	}

	if len(first) != 2 || len(second) != 2 {
		t.Errorf("limit not applied: %d, %d", len(first), len(second))
	}
	if p.calls != 1 {
		t.Errorf("second fetch should come from cache, provider calls = %d", p.calls)
	}

	if _, err := agg.FetchNews(context.Background(), "현대차", 3); err != nil {
		t.Fatalf("FetchNews: %v", err)
	}
	if p.calls != 2 {
		t.Errorf("different day window must miss cache, provider calls = %d", p.calls)
	}
}
