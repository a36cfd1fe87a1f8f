package reports

import (
	"time"

	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// MetricLine is one formatted row of the metrics table
type MetricLine struct {
	Label string
	Value string
}

// CompanyReport is the summary shown for an analyzed company
type CompanyReport struct {
	Company        string
	Ticker         string
	Metrics        []MetricLine
	PriceChange    string
	Analysis       string
	AnalysisFailed bool
	News           []models.NewsItem
	GeneratedAt    time.Time
}
