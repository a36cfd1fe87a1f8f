// Package financial merges per-metric observations from several market sources
// into a single record and formats it for display.
package financial

// Metric identifies one financial indicator of a listed company
type Metric string

const (
	MetricCurrentPrice  Metric = "current_price"
	MetricPreviousClose Metric = "previous_close"
	MetricYearHigh      Metric = "year_high"
	MetricYearLow       Metric = "year_low"
	MetricMarketCap     Metric = "market_cap"
	MetricPER           Metric = "per"
	MetricPBR           Metric = "pbr"
	MetricDividendYield Metric = "dividend_yield"
	MetricBPS           Metric = "bps"
	MetricDebtRatio     Metric = "debt_ratio"
	MetricNetIncome     Metric = "net_income"
)

// Kind decides how a metric value is rendered
type Kind int

const (
	KindPrice Kind = iota
	KindRatio
	KindPercent
	KindAmount
)

// AllMetrics lists every metric in display order
var AllMetrics = []Metric{
	MetricCurrentPrice,
	MetricPreviousClose,
	MetricYearHigh,
	MetricYearLow,
	MetricMarketCap,
	MetricPER,
	MetricPBR,
	MetricDividendYield,
	MetricBPS,
	MetricDebtRatio,
	MetricNetIncome,
}

var metricLabels = map[Metric]string{
	MetricCurrentPrice:  "현재 주가",
	MetricPreviousClose: "전일 종가",
	MetricYearHigh:      "52주 최고가",
	MetricYearLow:       "52주 최저가",
	MetricMarketCap:     "시가총액",
	MetricPER:           "PER",
	MetricPBR:           "PBR",
	MetricDividendYield: "배당수익률",
	MetricBPS:           "BPS",
	MetricDebtRatio:     "부채비율",
	MetricNetIncome:     "당기순이익",
}

var metricKinds = map[Metric]Kind{
	MetricCurrentPrice:  KindPrice,
	MetricPreviousClose: KindPrice,
	MetricYearHigh:      KindPrice,
	MetricYearLow:       KindPrice,
	MetricMarketCap:     KindAmount,
	MetricPER:           KindRatio,
	MetricPBR:           KindRatio,
	MetricDividendYield: KindPercent,
	MetricBPS:           KindPrice,
	MetricDebtRatio:     KindPercent,
	MetricNetIncome:     KindAmount,
}

// Label returns the Korean display label
func (m Metric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l
	}
	return string(m)
}

// Kind returns the formatting kind of the metric
func (m Metric) Kind() Kind {
	return metricKinds[m]
}
