package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/selivandex/stock-qa-bot/pkg/models"
)

type fakeFetcher struct {
	fail  map[string]bool
	calls []string
	days  int
}

func (f *fakeFetcher) FetchNews(_ context.Context, company string, days int) ([]models.NewsItem, error) {
	f.calls = append(f.calls, company)
	f.days = days
	if f.fail[company] {
		return nil, errors.New("blocked")
	}
	return []models.NewsItem{{Title: company}}, nil
}

func TestNewsPrefetchWorker_Run(t *testing.T) {
	tests := []struct {
		name      string
		watchlist []string
		fail      map[string]bool
		wantErr   bool
	}{
		{"empty watchlist", nil, nil, false},
		{"all succeed", []string{"삼성전자", "카카오"}, nil, false},
		{"partial failure", []string{"삼성전자", "카카오"}, map[string]bool{"카카오": true}, false},
		{"all fail", []string{"삼성전자"}, map[string]bool{"삼성전자": true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{fail: tt.fail}
			w := NewNewsPrefetchWorker(f, tt.watchlist, 7)

			err := w.Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(f.calls) != len(tt.watchlist) {
				t.Errorf("expected %d fetches, got %d", len(tt.watchlist), len(f.calls))
			}
			if len(tt.watchlist) > 0 && f.days != 7 {
				t.Errorf("days = %d, want 7", f.days)
			}
		})
	}
}

type fakePruner struct {
	days int
}

func (p *fakePruner) Prune(_ context.Context, days int) (int64, error) {
	p.days = days
	return 3, nil
}

func TestEmbeddingPruneWorker_DefaultRetention(t *testing.T) {
	p := &fakePruner{}
	if err := NewEmbeddingPruneWorker(p, 0).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.days != 90 {
		t.Errorf("retention = %d, want 90", p.days)
	}
}
