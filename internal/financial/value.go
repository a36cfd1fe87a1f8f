package financial

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Value is a metric value as scraped plus its parsed number, if any
type Value struct {
	Raw     string
	Num     decimal.Decimal
	Numeric bool
}

// NumberValue wraps a known numeric value
func NumberValue(d decimal.Decimal) Value {
	return Value{Raw: d.String(), Num: d, Numeric: true}
}

// ParseValue drops everything except digits, sign and decimal point then parses.
// Unparseable input is kept as a raw, non-numeric value.
func ParseValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' {
			return r
		}
		return -1
	}, raw)

	switch cleaned {
	case "", "-", "+", ".":
		return Value{Raw: raw}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return Value{Raw: raw}
	}
	return Value{Raw: raw, Num: d, Numeric: true}
}
