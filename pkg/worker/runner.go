package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// Worker is one unit of background work
type Worker interface {
	// Name returns worker name for logging
	Name() string
	// Run executes one iteration
	Run(ctx context.Context) error
}

// PeriodicWorker runs a Worker immediately and then on every interval
type PeriodicWorker struct {
	worker   Worker
	interval time.Duration
	done     chan struct{}
}

// NewPeriodicWorker creates new periodic worker
func NewPeriodicWorker(worker Worker, interval time.Duration) *PeriodicWorker {
	return &PeriodicWorker{
		worker:   worker,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the loop; it exits when ctx is canceled
func (pw *PeriodicWorker) Start(ctx context.Context) {
	go pw.loop(ctx)
}

// Wait blocks until the loop exits or timeout elapses
func (pw *PeriodicWorker) Wait(timeout time.Duration) bool {
	select {
	case <-pw.done:
		return true
	case <-time.After(timeout):
		logger.Warn("⚠️ Worker stop timeout", zap.String("worker", pw.worker.Name()))
		return false
	}
}

func (pw *PeriodicWorker) loop(ctx context.Context) {
	defer close(pw.done)

	name := pw.worker.Name()
	logger.Info("🚀 Worker started",
		zap.String("worker", name),
		zap.Duration("interval", pw.interval),
	)

	pw.runOnce(ctx)

	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("🛑 Worker stopping", zap.String("worker", name))
			return
		case <-ticker.C:
			pw.runOnce(ctx)
		}
	}
}

// runOnce executes one iteration; errors and panics are logged, never fatal
func (pw *PeriodicWorker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panicked",
				zap.String("worker", pw.worker.Name()),
				zap.Error(fmt.Errorf("%v", r)),
			)
		}
	}()

	start := time.Now()
	if err := pw.worker.Run(ctx); err != nil {
		logger.Error("worker execution failed",
			zap.String("worker", pw.worker.Name()),
			zap.Error(err),
		)
		return
	}

	logger.Debug("worker iteration done",
		zap.String("worker", pw.worker.Name()),
		zap.Duration("took", time.Since(start)),
	)
}

// Group manages several periodic workers sharing one lifetime
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers []*PeriodicWorker
}

// NewGroup creates worker group bound to ctx
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{ctx: ctx, cancel: cancel}
}

// Add registers and starts worker
func (g *Group) Add(worker Worker, interval time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pw := NewPeriodicWorker(worker, interval)
	g.workers = append(g.workers, pw)
	pw.Start(g.ctx)
}

// Len returns number of registered workers
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.workers)
}

// Stop cancels all workers and waits up to timeout for each
func (g *Group) Stop(timeout time.Duration) {
	g.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, pw := range g.workers {
		pw.Wait(timeout)
	}

	logger.Info("✅ Worker group stopped", zap.Int("workers", len(g.workers)))
}
