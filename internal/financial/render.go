package financial

import (
	"fmt"
	"strings"
)

const renderHeader = "기업 재무 데이터 상세 분석"

// RenderText turns a record into labelled lines for indexing.
// Unavailable metrics are skipped; an empty string means nothing to index.
func RenderText(r Record) string {
	var b strings.Builder
	lines := 0
	for _, f := range r.Fields() {
		if !f.Available {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", f.Metric.Label(), FormatValue(f.Metric.Kind(), f.Value))
		lines++
	}
	if lines == 0 {
		return ""
	}

	header := renderHeader
	if r.Company != "" {
		header = fmt.Sprintf("%s %s", r.Company, renderHeader)
	}
	if change := FormatPriceChange(r); change != "" {
		fmt.Fprintf(&b, "전일 대비 등락률: %s\n", change)
	}
	return header + ":\n" + b.String()
}

// RenderTable renders every metric including unavailable ones, for chat display
func RenderTable(r Record) string {
	var b strings.Builder
	for _, f := range r.Fields() {
		fmt.Fprintf(&b, "%s: %s", f.Metric.Label(), FormatField(f))
		if f.Metric == MetricCurrentPrice {
			if change := FormatPriceChange(r); change != "" {
				fmt.Fprintf(&b, " (%s)", change)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
