package market

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/selivandex/stock-qa-bot/internal/financial"
)

// PricePoint is one daily bar
type PricePoint struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// ChartSource derives price metrics from Naver daily chart data. It is the
// fallback for the price fields only.
type ChartSource struct {
	fetcher Fetcher
	baseURL string
	days    int
}

// NewChartSource creates daily chart source; days bounds the history window
func NewChartSource(fetcher Fetcher, baseURL string, days int) *ChartSource {
	if days <= 0 {
		days = 260
	}
	return &ChartSource{fetcher: fetcher, baseURL: baseURL, days: days}
}

func (s *ChartSource) Name() string  { return "naver_chart" }
func (s *ChartSource) Priority() int { return 1 }

func (s *ChartSource) Observe(ctx context.Context, ticker string) (map[financial.Metric]financial.Observation, error) {
	points, err := s.History(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("empty chart for %s", ticker)
	}
	return observePrices(points), nil
}

// History returns daily bars oldest first
func (s *ChartSource) History(ctx context.Context, ticker string) ([]PricePoint, error) {
	q := url.Values{}
	q.Set("symbol", ticker)
	q.Set("timeframe", "day")
	q.Set("count", strconv.Itoa(s.days))
	q.Set("requestType", "0")

	body, err := s.fetcher.Get(ctx, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart: %w", err)
	}
	return parseChart(body)
}

// parseChart reads <item data="YYYYMMDD|open|high|low|close|volume"/> rows
func parseChart(body []byte) ([]PricePoint, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart: %w", err)
	}

	var points []PricePoint
	doc.Find("item").Each(func(_ int, item *goquery.Selection) {
		data, ok := item.Attr("data")
		if !ok {
			return
		}
		p, ok := parseBar(data)
		if ok {
			points = append(points, p)
		}
	})

	return points, nil
}

func parseBar(data string) (PricePoint, bool) {
	parts := strings.Split(data, "|")
	if len(parts) < 6 {
		return PricePoint{}, false
	}

	date, err := time.ParseInLocation("20060102", parts[0], kst)
	if err != nil {
		return PricePoint{}, false
	}

	var nums [4]decimal.Decimal
	for i := 0; i < 4; i++ {
		if parts[i+1] == "null" {
			return PricePoint{}, false
		}
		d, err := decimal.NewFromString(parts[i+1])
		if err != nil {
			return PricePoint{}, false
		}
		nums[i] = d
	}
	volume, _ := strconv.ParseInt(parts[5], 10, 64)

	return PricePoint{Date: date, Open: nums[0], High: nums[1], Low: nums[2], Close: nums[3], Volume: volume}, true
}

func observePrices(points []PricePoint) map[financial.Metric]financial.Observation {
	obs := map[financial.Metric]financial.Observation{
		financial.MetricPreviousClose: financial.NotAvailable(),
	}

	last := points[len(points)-1]
	obs[financial.MetricCurrentPrice] = financial.Available(financial.NumberValue(last.Close))
	if len(points) > 1 {
		obs[financial.MetricPreviousClose] = financial.Available(financial.NumberValue(points[len(points)-2].Close))
	}

	high, low := last.High, last.Low
	cutoff := last.Date.AddDate(-1, 0, 0)
	for _, p := range points {
		if p.Date.Before(cutoff) {
			continue
		}
		if p.High.GreaterThan(high) {
			high = p.High
		}
		if p.Low.LessThan(low) {
			low = p.Low
		}
	}
	obs[financial.MetricYearHigh] = financial.Available(financial.NumberValue(high))
	obs[financial.MetricYearLow] = financial.Available(financial.NumberValue(low))

	return obs
}

var kst = time.FixedZone("KST", 9*60*60)
