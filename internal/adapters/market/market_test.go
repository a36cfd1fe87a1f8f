package market

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/selivandex/stock-qa-bot/internal/financial"
)

type routeFetcher struct {
	routes map[string]string // url substring -> body
	err    error

	mu    sync.Mutex
	calls int
}

func (f *routeFetcher) Get(_ context.Context, url string, _ map[string]string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for frag, body := range f.routes {
		if strings.Contains(url, frag) {
			return []byte(body), nil
		}
	}
	return nil, errors.New("no route for " + url)
}

const itemPage = `<html><body>
<div class="rate_info">
  <p class="no_today"><em class="no_up"><span class="blind">71,500</span></em></p>
  <table class="no_info"><tr>
    <td class="first"><span class="sptxt">전일</span><em><span class="blind">70,000</span></em></td>
    <td><span class="sptxt">고가</span><em><span class="blind">72,000</span></em></td>
  </tr></table>
</div>
<div id="tab_con1">
  <table><tr><th>시가총액</th><td><em id="_market_sum">426조
	8,285</em>억원</td></tr></table>
  <table class="per_table">
    <tr><th>PER l EPS</th><td><em id="_per">13.45</em>배 l <em>5,316</em>원</td></tr>
    <tr><th>PBR l BPS</th><td><em id="_pbr">1.38</em>배 l <em>52,002</em>원</td></tr>
    <tr><th>배당수익률</th><td><em id="_dvr">2.02</em>%</td></tr>
  </table>
  <table><tr><th>52주최고 l 최저</th><td><em>88,800</em> l <em>49,900</em></td></tr></table>
</div>
<div id="content"><div class="section cop_analysis"><table><tbody>
  <tr><th>당기순이익</th><td>556,541</td><td>154,873</td><td>344,514</td><td>398,000</td></tr>
  <tr><th>부채비율</th><td>26.41</td><td>25.36</td><td></td><td>24.00</td></tr>
</tbody></table></div></div>
</body></html>`

func TestParseItemPage(t *testing.T) {
	obs, err := parseItemPage([]byte(itemPage))
	if err != nil {
		t.Fatalf("parseItemPage: %v", err)
	}

	tests := []struct {
		metric financial.Metric
		want   string
	}{
		{financial.MetricCurrentPrice, "71500"},
		{financial.MetricPreviousClose, "70000"},
		{financial.MetricMarketCap, "426828500000000"},
		{financial.MetricPER, "13.45"},
		{financial.MetricPBR, "1.38"},
		{financial.MetricBPS, "52002"},
		{financial.MetricDividendYield, "2.02"},
		{financial.MetricYearHigh, "88800"},
		{financial.MetricYearLow, "49900"},
		{financial.MetricNetIncome, "34451400000000"},
		{financial.MetricDebtRatio, "25.36"},
	}

	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			o := obs[tt.metric]
			if o.Status != financial.StatusAvailable {
				t.Fatalf("status = %v, want available", o.Status)
			}
			want := decimal.RequireFromString(tt.want)
			if !o.Value.Numeric || !o.Value.Num.Equal(want) {
				t.Errorf("value = %s (numeric=%v), want %s", o.Value.Num, o.Value.Numeric, tt.want)
			}
		})
	}
}

func TestParseItemPage_Empty(t *testing.T) {
	if _, err := parseItemPage([]byte("<html><body>종목 없음</body></html>")); !errors.Is(err, ErrNoMetrics) {
		t.Fatalf("expected ErrNoMetrics, got %v", err)
	}
}

func TestParseEokAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"426조 8,285", "426828500000000", true},
		{"8,285", "828500000000", true},
		{"1조", "1000000000000", true},
		{"1조 1", "1000100000000", true},
		{"", "0", false},
		{"abc", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseEokAmount(tt.in)
			if ok != tt.ok || !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("parseEokAmount(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

const chartXML = `<?xml version="1.0" encoding="EUC-KR" ?>
<protocol><chartdata symbol="005930" name="삼성전자" count="4" timeframe="day" precision="0">
<item data="20231002|60000|61000|59000|60500|100" />
<item data="20241004|60000|63000|59500|62000|100" />
<item data="20241007|62000|64000|61000|63000|200" />
<item data="20241008|63000|null|null|null|0" />
<item data="20241008|63000|65000|62500|64500|300" />
</chartdata></protocol>`

func TestChartSource_Observe(t *testing.T) {
	src := NewChartSource(&routeFetcher{routes: map[string]string{"symbol=005930": chartXML}}, "https://chart.example/sise", 260)

	obs, err := src.Observe(context.Background(), "005930")
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}

	check := func(m financial.Metric, want int64) {
		t.Helper()
		o := obs[m]
		if o.Status != financial.StatusAvailable || !o.Value.Num.Equal(decimal.NewFromInt(want)) {
			t.Errorf("%s = %+v, want %d", m, o, want)
		}
	}
	check(financial.MetricCurrentPrice, 64500)
	check(financial.MetricPreviousClose, 63000)
	check(financial.MetricYearHigh, 65000)
	// 2023-10-02 is outside the 52 week window
	check(financial.MetricYearLow, 59500)

	if _, ok := obs[financial.MetricPER]; ok {
		t.Error("chart source must not report PER")
	}
}

func TestResolvers(t *testing.T) {
	static := NewStaticResolver(map[string]string{"삼성 전자": "005930"})

	t.Run("static name", func(t *testing.T) {
		code, err := static.Resolve(context.Background(), "삼성전자")
		if err != nil || code != "005930" {
			t.Errorf("Resolve = %q, %v", code, err)
		}
	})

	t.Run("static code passthrough", func(t *testing.T) {
		code, err := static.Resolve(context.Background(), "035720")
		if err != nil || code != "035720" {
			t.Errorf("Resolve = %q, %v", code, err)
		}
	})

	t.Run("naver exact match preferred and memoized", func(t *testing.T) {
		f := &routeFetcher{routes: map[string]string{"ac?": `{"items":[
			{"code":"005935","name":"삼성전자우","typeCode":"KOSPI"},
			{"code":"005930","name":"삼성전자","typeCode":"KOSPI"}]}`}}
		r := NewNaverResolver(f, "https://ac.example/ac")

		for i := 0; i < 2; i++ {
			code, err := r.Resolve(context.Background(), "삼성전자")
			if err != nil || code != "005930" {
				t.Fatalf("Resolve = %q, %v", code, err)
			}
		}
		if f.calls != 1 {
			t.Errorf("expected one lookup, got %d", f.calls)
		}
	})

	t.Run("chain falls through", func(t *testing.T) {
		f := &routeFetcher{routes: map[string]string{"ac?": `{"items":[{"code":"035720","name":"카카오","typeCode":"KOSPI"}]}`}}
		chain := ChainResolver{static, NewNaverResolver(f, "https://ac.example/ac")}
		code, err := chain.Resolve(context.Background(), "카카오")
		if err != nil || code != "035720" {
			t.Errorf("Resolve = %q, %v", code, err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		f := &routeFetcher{routes: map[string]string{"ac?": `{"items":[]}`}}
		chain := ChainResolver{static, NewNaverResolver(f, "https://ac.example/ac")}
		if _, err := chain.Resolve(context.Background(), "없는회사"); !errors.Is(err, ErrTickerNotFound) {
			t.Errorf("expected ErrTickerNotFound, got %v", err)
		}
	})
}

func TestService_FetchCandidates(t *testing.T) {
	f := &routeFetcher{routes: map[string]string{
		"code=005930":   itemPage,
		"symbol=005930": chartXML,
	}}
	svc := NewService(
		NewStaticResolver(map[string]string{"삼성전자": "005930"}),
		NewNaverFinanceSource(f, "https://finance.example/item/main.naver"),
		NewChartSource(f, "https://chart.example/sise", 260),
	)

	ticker, candidates, err := svc.FetchCandidates(context.Background(), "삼성전자")
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if ticker != "005930" || len(candidates) != 2 {
		t.Fatalf("ticker=%q candidates=%d", ticker, len(candidates))
	}

	rec := financial.Merge("삼성전자", ticker, candidates)
	cur := rec.Field(financial.MetricCurrentPrice)
	if cur.Source != "naver_finance" || !cur.Value.Num.Equal(decimal.NewFromInt(71500)) {
		t.Errorf("primary source should win: %+v", cur)
	}
	if rec.AvailableCount() != len(financial.AllMetrics) {
		t.Errorf("available = %d", rec.AvailableCount())
	}

	t.Run("primary down falls back to chart", func(t *testing.T) {
		f2 := &routeFetcher{routes: map[string]string{"symbol=005930": chartXML}}
		svc2 := NewService(
			NewStaticResolver(map[string]string{"삼성전자": "005930"}),
			NewNaverFinanceSource(f2, "https://finance.example/item/main.naver"),
			NewChartSource(f2, "https://chart.example/sise", 260),
		)
		_, cands, err := svc2.FetchCandidates(context.Background(), "삼성전자")
		if err != nil {
			t.Fatalf("FetchCandidates: %v", err)
		}
		rec := financial.Merge("삼성전자", "005930", cands)
		cur := rec.Field(financial.MetricCurrentPrice)
		if cur.Source != "naver_chart" || !cur.Value.Num.Equal(decimal.NewFromInt(64500)) {
			t.Errorf("fallback not used: %+v", cur)
		}
		if rec.Field(financial.MetricPER).Available {
			t.Error("PER should be unavailable without the primary source")
		}
	})

	t.Run("unknown company", func(t *testing.T) {
		if _, _, err := svc.FetchCandidates(context.Background(), "없는회사"); !errors.Is(err, ErrTickerNotFound) {
			t.Errorf("expected ErrTickerNotFound, got %v", err)
		}
	})
}

func TestSummarizePeriod(t *testing.T) {
	points, err := parseChart([]byte(chartXML))
	if err != nil {
		t.Fatalf("parseChart: %v", err)
	}

	tests := []struct {
		name     string
		days     int
		sessions int
		high     string
		low      string
		change   string
	}{
		{"week", 7, 3, "65000", "59500", "4.03"},
		{"one day", 1, 1, "65000", "62500", "0.00"},
		{"whole history", 0, 4, "65000", "59000", "6.61"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, ok := SummarizePeriod(points, tt.days)
			if !ok {
				t.Fatal("expected summary")
			}
			if sum.Sessions != tt.sessions {
				t.Errorf("sessions = %d, want %d", sum.Sessions, tt.sessions)
			}
			if sum.High.String() != tt.high || sum.Low.String() != tt.low {
				t.Errorf("range = %s..%s, want %s..%s", sum.Low, sum.High, tt.low, tt.high)
			}
			pct, ok := sum.ChangePercent()
			if !ok || pct.StringFixed(2) != tt.change {
				t.Errorf("change = %s (%v), want %s", pct.StringFixed(2), ok, tt.change)
			}
		})
	}

	if _, ok := SummarizePeriod(nil, 7); ok {
		t.Error("empty history should not summarize")
	}
}
