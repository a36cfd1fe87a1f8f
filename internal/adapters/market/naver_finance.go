package market

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/selivandex/stock-qa-bot/internal/financial"
)

// ErrNoMetrics is returned when a page parses but carries no known metric
var ErrNoMetrics = errors.New("no metrics found on page")

var eok = decimal.New(1, 8)

// NaverFinanceSource scrapes the Naver Finance item page. It is the primary
// source and covers all metrics.
type NaverFinanceSource struct {
	fetcher Fetcher
	baseURL string
}

// NewNaverFinanceSource creates item page scraper
func NewNaverFinanceSource(fetcher Fetcher, baseURL string) *NaverFinanceSource {
	return &NaverFinanceSource{fetcher: fetcher, baseURL: baseURL}
}

func (s *NaverFinanceSource) Name() string  { return "naver_finance" }
func (s *NaverFinanceSource) Priority() int { return 0 }

func (s *NaverFinanceSource) Observe(ctx context.Context, ticker string) (map[financial.Metric]financial.Observation, error) {
	body, err := s.fetcher.Get(ctx, s.baseURL+"?code="+url.QueryEscape(ticker), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item page: %w", err)
	}
	return parseItemPage(body)
}

func parseItemPage(body []byte) (map[financial.Metric]financial.Observation, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse item page: %w", err)
	}

	obs := make(map[financial.Metric]financial.Observation, len(financial.AllMetrics))
	for _, m := range financial.AllMetrics {
		obs[m] = financial.NotAvailable()
	}
	set := func(m financial.Metric, text string) {
		text = strings.TrimSpace(text)
		if text == "" || text == "N/A" || text == "-" {
			return
		}
		obs[m] = financial.Available(financial.ParseValue(text))
	}

	set(financial.MetricCurrentPrice, doc.Find(".no_today .blind").First().Text())

	doc.Find(".no_info td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		if strings.Contains(td.Text(), "전일") {
			set(financial.MetricPreviousClose, td.Find(".blind").First().Text())
			return false
		}
		return true
	})

	if v, ok := parseEokAmount(doc.Find("#_market_sum").First().Text()); ok {
		obs[financial.MetricMarketCap] = financial.Available(financial.NumberValue(v))
	}

	set(financial.MetricPER, doc.Find("#_per").First().Text())
	set(financial.MetricPBR, doc.Find("#_pbr").First().Text())
	set(financial.MetricDividendYield, doc.Find("#_dvr").First().Text())

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		label := compact(row.Find("th").First().Text())
		ems := row.Find("td em")

		switch {
		case strings.Contains(label, "52주최고") && ems.Length() >= 2:
			set(financial.MetricYearHigh, ems.Eq(0).Text())
			set(financial.MetricYearLow, ems.Eq(1).Text())
		case strings.Contains(label, "BPS") && ems.Length() >= 1:
			set(financial.MetricBPS, ems.Last().Text())
		}
	})

	doc.Find(".section.cop_analysis table tbody tr").Each(func(_ int, row *goquery.Selection) {
		label := compact(row.Find("th").First().Text())
		switch label {
		case "부채비율":
			if text, ok := latestAnnual(row); ok {
				set(financial.MetricDebtRatio, text)
			}
		case "당기순이익":
			if text, ok := latestAnnual(row); ok {
				v := financial.ParseValue(text)
				if v.Numeric {
					// reported in 억원
					v = financial.NumberValue(v.Num.Mul(eok))
				}
				obs[financial.MetricNetIncome] = financial.Available(v)
			}
		}
	})

	for _, o := range obs {
		if o.Status == financial.StatusAvailable {
			return obs, nil
		}
	}
	return nil, ErrNoMetrics
}

// latestAnnual returns the most recent non-empty value among the three
// settled annual columns; the fourth annual column is an estimate.
func latestAnnual(row *goquery.Selection) (string, bool) {
	tds := row.Find("td")
	limit := tds.Length()
	if limit > 3 {
		limit = 3
	}
	for i := limit - 1; i >= 0; i-- {
		text := strings.TrimSpace(tds.Eq(i).Text())
		if text != "" && text != "-" {
			return text, true
		}
	}
	return "", false
}

// parseEokAmount converts "2,134조 5,678" (억원 units) to won
func parseEokAmount(text string) (decimal.Decimal, bool) {
	text = compact(text)
	if text == "" {
		return decimal.Zero, false
	}

	var total decimal.Decimal
	rest := text
	if i := strings.Index(rest, "조"); i >= 0 {
		jo, err := decimal.NewFromString(strings.ReplaceAll(rest[:i], ",", ""))
		if err != nil {
			return decimal.Zero, false
		}
		total = jo.Mul(decimal.NewFromInt(10000))
		rest = rest[i+len("조"):]
	}

	rest = strings.TrimSuffix(strings.TrimSuffix(rest, "원"), "억")
	rest = strings.ReplaceAll(rest, ",", "")
	if rest != "" {
		n, err := decimal.NewFromString(rest)
		if err != nil {
			return decimal.Zero, false
		}
		total = total.Add(n)
	}

	return total.Mul(eok), true
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
