package financial

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func num(s string) Value {
	return ParseValue(s)
}

func TestMerge_PriorityOrder(t *testing.T) {
	primary := Candidate{
		Source:   "naver",
		Priority: 0,
		Observations: map[Metric]Observation{
			MetricPER:           Available(num("12.5")),
			MetricDividendYield: NotAvailable(),
			MetricDebtRatio:     SourceFailed(errors.New("table missing")),
		},
	}
	fallback := Candidate{
		Source:   "chart",
		Priority: 1,
		Observations: map[Metric]Observation{
			MetricPER:           Available(num("99")),
			MetricDividendYield: Available(num("2.5")),
			MetricDebtRatio:     Available(num("40.1")),
		},
	}

	// input order must not matter
	rec := Merge("삼성전자", "005930", []Candidate{fallback, primary})

	tests := []struct {
		metric Metric
		source string
		value  string
	}{
		{MetricPER, "naver", "12.5"},
		{MetricDividendYield, "chart", "2.5"},
		{MetricDebtRatio, "chart", "40.1"},
	}
	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			f := rec.Field(tt.metric)
			if !f.Available {
				t.Fatalf("%s not available", tt.metric)
			}
			if f.Source != tt.source {
				t.Errorf("source = %s, want %s", f.Source, tt.source)
			}
			if !f.Value.Num.Equal(decimal.RequireFromString(tt.value)) {
				t.Errorf("value = %s, want %s", f.Value.Num, tt.value)
			}
		})
	}

	if f := rec.Field(MetricNetIncome); f.Available {
		t.Errorf("net income should be unavailable, got %+v", f)
	}
	if got := FormatField(rec.Field(MetricNetIncome)); got != NotAvailableText {
		t.Errorf("unavailable formatted as %q", got)
	}
}

func TestMerge_FailedSourceIgnored(t *testing.T) {
	broken := Candidate{
		Source:       "naver",
		Priority:     0,
		Observations: map[Metric]Observation{MetricPER: Available(num("1"))},
		Err:          errors.New("timeout"),
	}
	rec := Merge("x", "000000", []Candidate{broken})
	if rec.AvailableCount() != 0 {
		t.Errorf("failed source contributed %d metrics", rec.AvailableCount())
	}
	if len(rec.Fields()) != len(AllMetrics) {
		t.Errorf("fields = %d, want %d", len(rec.Fields()), len(AllMetrics))
	}
}

func priceRecord(cur, prev *Value) Record {
	obs := map[Metric]Observation{}
	if cur != nil {
		obs[MetricCurrentPrice] = Available(*cur)
	}
	if prev != nil {
		obs[MetricPreviousClose] = Available(*prev)
	}
	return Merge("x", "000000", []Candidate{{Source: "s", Observations: obs}})
}

func TestPriceChange(t *testing.T) {
	v := func(s string) *Value { x := ParseValue(s); return &x }

	tests := []struct {
		name string
		cur  *Value
		prev *Value
		want string
	}{
		{"rise", v("110"), v("100"), "+10.00%"},
		{"fall", v("95"), v("100"), "-5.00%"},
		{"flat", v("100"), v("100"), "0.00%"},
		{"missing previous", v("110"), nil, ""},
		{"zero previous", v("110"), v("0"), ""},
		{"non numeric", v("110"), v("N/A"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatPriceChange(priceRecord(tt.cur, tt.prev)); got != tt.want {
				t.Errorf("FormatPriceChange = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		kind Kind
		raw  string
		want string
	}{
		{KindPrice, "1234", "1,234원"},
		{KindPrice, "71,500", "71,500원"},
		{KindRatio, "12.34", "12.34배"},
		{KindPercent, "2.5", "2.50%"},
		{KindAmount, "4500000000000", "4.50조원"},
		{KindAmount, "350000000", "3.50억원"},
		{KindAmount, "5000", "5,000원"},
		{KindAmount, "-250000000", "-2.50억원"},
		{KindRatio, "N/A", "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := FormatValue(tt.kind, ParseValue(tt.raw)); got != tt.want {
				t.Errorf("FormatValue(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRenderText(t *testing.T) {
	rec := Merge("삼성전자", "005930", []Candidate{{
		Source: "naver",
		Observations: map[Metric]Observation{
			MetricCurrentPrice:  Available(num("110")),
			MetricPreviousClose: Available(num("100")),
			MetricPER:           Available(num("10")),
		},
	}})

	text := RenderText(rec)
	for _, want := range []string{"삼성전자", "현재 주가: 110원", "PER: 10.00배", "+10.00%"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "PBR") || strings.Contains(text, NotAvailableText) {
		t.Errorf("unavailable metrics must be skipped:\n%s", text)
	}

	if empty := RenderText(Merge("x", "", nil)); empty != "" {
		t.Errorf("record without data rendered %q", empty)
	}
}
