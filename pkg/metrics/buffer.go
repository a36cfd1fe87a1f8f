package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// BufferedMetrics groups metrics per table and flushes them on size or interval
type BufferedMetrics struct {
	writer        Writer
	buffer        map[string][]Metric
	batchSize     int
	maxBufferSize int
	flushInterval time.Duration
	flushCh       chan struct{}
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	dropped       int64
}

// BufferConfig configures metrics buffer
type BufferConfig struct {
	Writer        Writer
	BatchSize     int           // Flush when one table reaches this size
	FlushInterval time.Duration // Periodic flush
	MaxBufferSize int           // Per-table cap, oldest rows dropped beyond it (0 = unlimited)
}

// NewBufferedMetrics creates buffer and starts its flush loop
func NewBufferedMetrics(cfg BufferConfig) *BufferedMetrics {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	bm := &BufferedMetrics{
		writer:        cfg.Writer,
		buffer:        make(map[string][]Metric),
		batchSize:     cfg.BatchSize,
		maxBufferSize: cfg.MaxBufferSize,
		flushInterval: cfg.FlushInterval,
		flushCh:       make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}

	bm.wg.Add(1)
	go bm.loop()

	logger.Info("metrics buffer initialized",
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("flush_interval", cfg.FlushInterval),
		zap.Int("max_buffer_size", cfg.MaxBufferSize),
	)

	return bm
}

// Add queues metric (thread-safe)
func (bm *BufferedMetrics) Add(metric Metric) error {
	if metric == nil {
		return fmt.Errorf("metric is nil")
	}

	table := metric.TableName()
	if table == "" {
		return fmt.Errorf("metric table name is empty")
	}

	bm.mu.Lock()
	rows := append(bm.buffer[table], metric)
	if bm.maxBufferSize > 0 && len(rows) > bm.maxBufferSize {
		overflow := len(rows) - bm.maxBufferSize
		rows = rows[overflow:]
		bm.dropped += int64(overflow)
	}
	bm.buffer[table] = rows
	full := len(rows) >= bm.batchSize
	bm.mu.Unlock()

	if full {
		select {
		case bm.flushCh <- struct{}{}:
		default:
		}
	}

	return nil
}

// Flush writes all queued metrics
func (bm *BufferedMetrics) Flush(ctx context.Context) error {
	bm.mu.Lock()
	toFlush := make(map[string][]Metric, len(bm.buffer))
	for table, rows := range bm.buffer {
		if len(rows) > 0 {
			toFlush[table] = rows
			bm.buffer[table] = nil
		}
	}
	dropped := bm.dropped
	bm.dropped = 0
	bm.mu.Unlock()

	if dropped > 0 {
		logger.Warn("metrics dropped due to full buffer", zap.Int64("dropped", dropped))
	}

	if len(toFlush) == 0 {
		return nil
	}

	failed := 0
	for table, rows := range toFlush {
		if err := bm.writer.Write(ctx, table, rows); err != nil {
			logger.Error("failed to flush metrics",
				zap.String("table", table),
				zap.Int("count", len(rows)),
				zap.Error(err),
			)
			failed++
			continue
		}
		logger.Debug("metrics flushed",
			zap.String("table", table),
			zap.Int("count", len(rows)),
		)
	}

	if failed > 0 {
		return fmt.Errorf("flush failed for %d tables", failed)
	}

	return nil
}

// Size returns number of queued metrics across tables
func (bm *BufferedMetrics) Size() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	total := 0
	for _, rows := range bm.buffer {
		total += len(rows)
	}
	return total
}

// Close stops the flush loop, flushes remaining metrics and closes the writer
func (bm *BufferedMetrics) Close(ctx context.Context) error {
	logger.Info("closing metrics buffer...")

	close(bm.stopCh)
	bm.wg.Wait()

	if err := bm.Flush(ctx); err != nil {
		logger.Error("final flush failed", zap.Error(err))
		return err
	}

	if err := bm.writer.Close(); err != nil {
		logger.Error("metrics writer close failed", zap.Error(err))
		return err
	}

	logger.Info("✅ metrics buffer closed")
	return nil
}

func (bm *BufferedMetrics) loop() {
	defer bm.wg.Done()

	ticker := time.NewTicker(bm.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-bm.flushCh:
		case <-bm.stopCh:
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := bm.Flush(ctx); err != nil {
			logger.Warn("periodic metrics flush failed", zap.Error(err))
		}
		cancel()
	}
}
