package metrics

import "context"

// Metric is a single row destined for an analytics table
type Metric interface {
	// TableName returns target table
	TableName() string
	// Values returns column values in table column order
	Values() []interface{}
}

// Writer persists batches of metrics
type Writer interface {
	Write(ctx context.Context, tableName string, metrics []Metric) error
	Close() error
}

// Buffer batches metrics and flushes them to a Writer
type Buffer interface {
	// Add queues metric (thread-safe)
	Add(metric Metric) error
	Flush(ctx context.Context) error
	Size() int
	// Close flushes remaining metrics and closes the writer
	Close(ctx context.Context) error
}

// NopBuffer discards everything. Used when analytics storage is disabled.
type NopBuffer struct{}

func (NopBuffer) Add(Metric) error            { return nil }
func (NopBuffer) Flush(context.Context) error { return nil }
func (NopBuffer) Size() int                   { return 0 }
func (NopBuffer) Close(context.Context) error { return nil }
