package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodSummary describes price movement over a trailing window of daily bars
type PeriodSummary struct {
	From       time.Time
	To         time.Time
	Sessions   int // trading days in the window
	StartClose decimal.Decimal
	Close      decimal.Decimal
	High       decimal.Decimal
	HighDate   time.Time
	Low        decimal.Decimal
	LowDate    time.Time
	Volume     int64
}

// ChangePercent is (close-start)/start*100, false when the start close is zero
func (p PeriodSummary) ChangePercent() (decimal.Decimal, bool) {
	if p.StartClose.IsZero() {
		return decimal.Zero, false
	}
	return p.Close.Sub(p.StartClose).Div(p.StartClose).Mul(decimal.NewFromInt(100)), true
}

// SummarizePeriod covers bars dated within days calendar days of the latest bar.
// days <= 0 covers the whole history. points must be oldest first.
func SummarizePeriod(points []PricePoint, days int) (PeriodSummary, bool) {
	if len(points) == 0 {
		return PeriodSummary{}, false
	}

	window := points
	if days > 0 {
		cutoff := points[len(points)-1].Date.AddDate(0, 0, -days)
		start := len(points) - 1
		for start > 0 && points[start-1].Date.After(cutoff) {
			start--
		}
		window = points[start:]
	}

	first, last := window[0], window[len(window)-1]
	sum := PeriodSummary{
		From:       first.Date,
		To:         last.Date,
		Sessions:   len(window),
		StartClose: first.Close,
		Close:      last.Close,
		High:       first.High,
		HighDate:   first.Date,
		Low:        first.Low,
		LowDate:    first.Date,
	}
	for _, p := range window {
		if p.High.GreaterThan(sum.High) {
			sum.High, sum.HighDate = p.High, p.Date
		}
		if p.Low.LessThan(sum.Low) {
			sum.Low, sum.LowDate = p.Low, p.Date
		}
		sum.Volume += p.Volume
	}
	return sum, true
}
