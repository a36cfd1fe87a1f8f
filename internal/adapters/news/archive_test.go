package news

import (
	"context"
	"testing"
	"time"

	"github.com/selivandex/stock-qa-bot/pkg/models"
	"github.com/selivandex/stock-qa-bot/test/testdb"
)

func TestArchive_SaveAndRecent(t *testing.T) {
	db := testdb.Setup(t)
	archive := NewArchive(db.DB())
	ctx := context.Background()

	published := time.Date(2024, 10, 7, 9, 0, 0, 0, time.UTC)
	items := []models.NewsItem{
		{Source: "naver", Title: "삼성전자 실적 발표", Link: "https://news.example/1", Content: "영업이익 증가", PublishedAt: published},
		{Source: "google_rss", Title: "반도체 업황", Link: "https://news.example/2"},
		{Source: "naver", Title: "링크 없음", Link: ""},
		{Source: "naver", Title: "중복 링크", Link: "https://news.example/1"},
	}

	saved, err := archive.Save(ctx, "삼성전자", items)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved != 2 {
		t.Errorf("saved = %d, want 2", saved)
	}

	// re-saving updates in place
	if _, err := archive.Save(ctx, "삼성전자", items[:1]); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	got, err := archive.Recent(ctx, "삼성전자", time.Hour, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d items, want 2", len(got))
	}

	var found bool
	for _, item := range got {
		if item.Link == "https://news.example/1" {
			found = true
			if !item.PublishedAt.Equal(published) {
				t.Errorf("published_at = %v, want %v", item.PublishedAt, published)
			}
		}
	}
	if !found {
		t.Error("archived article missing")
	}

	other, err := archive.Recent(ctx, "카카오", time.Hour, 10)
	if err != nil {
		t.Fatalf("Recent other: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other company got %d items", len(other))
	}
}
