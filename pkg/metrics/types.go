package metrics

import "time"

// EmbeddingCacheMetric records one embedding lookup against the persistent cache
type EmbeddingCacheMetric struct {
	Timestamp  time.Time
	TextHash   string
	TextLength int
	Model      string
	CacheHit   bool
}

func (m *EmbeddingCacheMetric) TableName() string {
	return "embedding_cache_metrics"
}

func (m *EmbeddingCacheMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.TextHash,
		int64(m.TextLength),
		m.Model,
		m.CacheHit,
	}
}

// SessionBuildMetric records how a conversation session index was built
type SessionBuildMetric struct {
	Timestamp     time.Time
	SessionID     string
	Company       string
	DayWindow     int
	NewsFetched   int
	NewsKept      int
	MetricsFound  int
	Chunks        int
	NewsFailed    bool
	MetricsFailed bool
	DurationMs    int64
	Success       bool
}

func (m *SessionBuildMetric) TableName() string {
	return "session_build_metrics"
}

func (m *SessionBuildMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.SessionID,
		m.Company,
		int64(m.DayWindow),
		int64(m.NewsFetched),
		int64(m.NewsKept),
		int64(m.MetricsFound),
		int64(m.Chunks),
		m.NewsFailed,
		m.MetricsFailed,
		m.DurationMs,
		m.Success,
	}
}

// AskMetric records one question answered (or not) by a session
type AskMetric struct {
	Timestamp    time.Time
	SessionID    string
	Company      string
	QueryLength  int
	Retrieved    int
	CitedSources int
	Insufficient bool
	Success      bool
	LatencyMs    int64
}

func (m *AskMetric) TableName() string {
	return "ask_metrics"
}

func (m *AskMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.SessionID,
		m.Company,
		int64(m.QueryLength),
		int64(m.Retrieved),
		int64(m.CitedSources),
		m.Insufficient,
		m.Success,
		m.LatencyMs,
	}
}

// NewsFetchMetric records one provider call
type NewsFetchMetric struct {
	Timestamp  time.Time
	Provider   string
	Company    string
	Items      int
	CacheHit   bool
	Success    bool
	DurationMs int64
}

func (m *NewsFetchMetric) TableName() string {
	return "news_fetch_metrics"
}

func (m *NewsFetchMetric) Values() []interface{} {
	return []interface{}{
		m.Timestamp,
		m.Provider,
		m.Company,
		int64(m.Items),
		m.CacheHit,
		m.Success,
		m.DurationMs,
	}
}
