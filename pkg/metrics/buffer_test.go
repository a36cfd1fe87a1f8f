package metrics

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memoryWriter struct {
	mu     sync.Mutex
	rows   map[string]int
	closed bool
}

func (w *memoryWriter) Write(_ context.Context, table string, metrics []Metric) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rows == nil {
		w.rows = map[string]int{}
	}
	w.rows[table] += len(metrics)
	return nil
}

func (w *memoryWriter) Close() error {
	w.closed = true
	return nil
}

func (w *memoryWriter) count(table string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows[table]
}

func TestBufferedMetrics_FlushOnClose(t *testing.T) {
	w := &memoryWriter{}
	bm := NewBufferedMetrics(BufferConfig{Writer: w, BatchSize: 1000, FlushInterval: time.Hour})

	for i := 0; i < 3; i++ {
		if err := bm.Add(&AskMetric{Timestamp: time.Now(), SessionID: "s"}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := bm.Add(&SessionBuildMetric{Timestamp: time.Now()}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if bm.Size() != 4 {
		t.Errorf("Size = %d, want 4", bm.Size())
	}

	if err := bm.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.count("ask_metrics") != 3 || w.count("session_build_metrics") != 1 {
		t.Errorf("written rows = %v", w.rows)
	}
	if !w.closed {
		t.Error("writer not closed")
	}
}

func TestBufferedMetrics_DropsOldestBeyondCap(t *testing.T) {
	w := &memoryWriter{}
	bm := NewBufferedMetrics(BufferConfig{Writer: w, BatchSize: 1000, FlushInterval: time.Hour, MaxBufferSize: 2})

	for i := 0; i < 5; i++ {
		_ = bm.Add(&NewsFetchMetric{Provider: "naver"})
	}
	if bm.Size() != 2 {
		t.Errorf("Size = %d, want 2", bm.Size())
	}
	_ = bm.Close(context.Background())
	if w.count("news_fetch_metrics") != 2 {
		t.Errorf("written = %d, want 2", w.count("news_fetch_metrics"))
	}
}

func TestBufferedMetrics_RejectsNil(t *testing.T) {
	bm := NewBufferedMetrics(BufferConfig{Writer: &memoryWriter{}, FlushInterval: time.Hour})
	defer bm.Close(context.Background())

	if err := bm.Add(nil); err == nil {
		t.Error("expected error for nil metric")
	}
}
