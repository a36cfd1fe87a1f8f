package financial

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Status of a single metric observation
type Status int

const (
	StatusNotAvailable Status = iota
	StatusAvailable
	StatusSourceError
)

// Observation is what one source reports for one metric
type Observation struct {
	Status Status
	Value  Value
	Err    error
}

// Available builds an observation carrying a value
func Available(v Value) Observation {
	return Observation{Status: StatusAvailable, Value: v}
}

// NotAvailable builds an observation for a metric the source does not publish
func NotAvailable() Observation {
	return Observation{Status: StatusNotAvailable}
}

// SourceFailed builds an observation for a metric that could not be read
func SourceFailed(err error) Observation {
	return Observation{Status: StatusSourceError, Err: err}
}

// Candidate is the full set of observations from one source.
// Lower priority wins. A non-nil Err marks the whole source as failed.
type Candidate struct {
	Source       string
	Priority     int
	Observations map[Metric]Observation
	Err          error
}

// Field is the resolved value of one metric in a merged record
type Field struct {
	Metric    Metric
	Value     Value
	Available bool
	Source    string
}

// Record holds one resolved field for every metric
type Record struct {
	Company string
	Ticker  string
	fields  map[Metric]Field
}

// Merge resolves each metric to the first available observation in ascending
// priority order. Candidates with equal priority keep their input order.
func Merge(company, ticker string, candidates []Candidate) Record {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	rec := Record{
		Company: company,
		Ticker:  ticker,
		fields:  make(map[Metric]Field, len(AllMetrics)),
	}

	for _, m := range AllMetrics {
		field := Field{Metric: m}
		for _, c := range ordered {
			if c.Err != nil {
				continue
			}
			obs, ok := c.Observations[m]
			if !ok || obs.Status != StatusAvailable {
				continue
			}
			field.Value = obs.Value
			field.Available = true
			field.Source = c.Source
			break
		}
		rec.fields[m] = field
	}

	return rec
}

// Field returns the resolved field for m; unknown metrics are unavailable
func (r Record) Field(m Metric) Field {
	if f, ok := r.fields[m]; ok {
		return f
	}
	return Field{Metric: m}
}

// Fields returns all fields in display order
func (r Record) Fields() []Field {
	out := make([]Field, 0, len(AllMetrics))
	for _, m := range AllMetrics {
		out = append(out, r.Field(m))
	}
	return out
}

// AvailableCount returns number of metrics with a value
func (r Record) AvailableCount() int {
	n := 0
	for _, f := range r.fields {
		if f.Available {
			n++
		}
	}
	return n
}

// PriceChangePercent returns (current - previous) / previous * 100.
// ok is false when either price is missing, non-numeric or previous is zero.
func (r Record) PriceChangePercent() (decimal.Decimal, bool) {
	cur := r.Field(MetricCurrentPrice)
	prev := r.Field(MetricPreviousClose)
	if !cur.Available || !prev.Available || !cur.Value.Numeric || !prev.Value.Numeric {
		return decimal.Zero, false
	}
	if prev.Value.Num.IsZero() {
		return decimal.Zero, false
	}
	return cur.Value.Num.Sub(prev.Value.Num).Div(prev.Value.Num).Mul(decimal.NewFromInt(100)), true
}
