package financial

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NotAvailableText is shown for metrics no source could provide
const NotAvailableText = "정보 없음"

var (
	trillion = decimal.New(1, 12)
	hundredM = decimal.New(1, 8)
	printer  = message.NewPrinter(language.Korean)
)

// FormatField renders a resolved field for display
func FormatField(f Field) string {
	if !f.Available {
		return NotAvailableText
	}
	return FormatValue(f.Metric.Kind(), f.Value)
}

// FormatValue renders v according to kind. Non-numeric values are returned as scraped.
func FormatValue(kind Kind, v Value) string {
	if !v.Numeric {
		if v.Raw == "" {
			return NotAvailableText
		}
		return v.Raw
	}

	switch kind {
	case KindPrice:
		return printer.Sprintf("%d원", v.Num.IntPart())
	case KindRatio:
		return printer.Sprintf("%.2f배", v.Num.InexactFloat64())
	case KindPercent:
		return printer.Sprintf("%.2f%%", v.Num.InexactFloat64())
	case KindAmount:
		return formatAmount(v.Num)
	default:
		return v.Raw
	}
}

func formatAmount(d decimal.Decimal) string {
	abs := d.Abs()
	switch {
	case abs.GreaterThanOrEqual(trillion):
		return printer.Sprintf("%.2f조원", d.Div(trillion).InexactFloat64())
	case abs.GreaterThanOrEqual(hundredM):
		return printer.Sprintf("%.2f억원", d.Div(hundredM).InexactFloat64())
	default:
		return printer.Sprintf("%d원", d.IntPart())
	}
}

// FormatPriceChange renders the day change as "+10.00%", or "" when unknown
func FormatPriceChange(r Record) string {
	pct, ok := r.PriceChangePercent()
	if !ok {
		return ""
	}
	return FormatChange(pct)
}

// FormatChange renders a percent change with an explicit sign for gains
func FormatChange(pct decimal.Decimal) string {
	sign := ""
	if pct.IsPositive() {
		sign = "+"
	}
	return sign + pct.StringFixed(2) + "%"
}
