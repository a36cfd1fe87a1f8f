package news

import (
	"context"
	"strings"
	"testing"
	"time"
)

type staticFetcher struct {
	body string
	url  string
}

func (f *staticFetcher) Get(_ context.Context, url string, _ map[string]string) ([]byte, error) {
	f.url = url
	return []byte(f.body), nil
}

const googleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>news</title>
<item><title>현대차, 전기차 판매 신기록</title><link>https://news.example/ev</link>
<description>&lt;a href="https://news.example/ev"&gt;현대차 전기차&lt;/a&gt; 판매 호조</description>
<pubDate>Mon, 07 Oct 2024 09:00:00 GMT</pubDate></item>
<item><title>오래된 기사</title><link>https://news.example/old</link>
<pubDate>Mon, 02 Sep 2024 09:00:00 GMT</pubDate></item>
<item><title>날짜 없는 기사</title><link>https://news.example/nodate</link></item>
</channel></rss>`

func TestRSSProvider_FetchNews(t *testing.T) {
	f := &staticFetcher{body: googleFeed}
	p := NewRSSProvider(f, true)
	p.now = func() time.Time { return time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC) }

	items, err := p.FetchNews(context.Background(), "현대차", 7)
	if err != nil {
		t.Fatalf("FetchNews: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items (old one filtered), got %d", len(items))
	}
	if items[0].Title != "현대차, 전기차 판매 신기록" || items[0].Source != "google_rss" {
		t.Errorf("unexpected item: %+v", items[0])
	}
	if items[0].Content != "현대차 전기차 판매 호조" {
		t.Errorf("html not stripped: %q", items[0].Content)
	}
	if items[1].Title != "날짜 없는 기사" {
		t.Errorf("undated item should be kept, got %q", items[1].Title)
	}
	if !strings.Contains(f.url, "when%3A7d") || !strings.Contains(f.url, "ceid=KR%3Ako") {
		t.Errorf("unexpected feed url %s", f.url)
	}
}

func TestRSSProvider_BadFeed(t *testing.T) {
	p := NewRSSProvider(&staticFetcher{body: "not xml"}, true)
	if _, err := p.FetchNews(context.Background(), "현대차", 7); err == nil {
		t.Fatal("expected parse error")
	}
}
