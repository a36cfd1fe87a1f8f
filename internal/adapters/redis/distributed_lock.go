package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

const defaultLockTTL = 30 * time.Second

// DistributedLock wraps redlock with automatic renewal while held
type DistributedLock struct {
	lockManager *redlock.RedLock
	resource    string
	lockName    string
	ttl         time.Duration

	mu     sync.Mutex
	locked bool
	stop   chan struct{}
}

// NewDistributedLock creates lock for resource. ttl <= 0 uses 30s.
func NewDistributedLock(lockManager *redlock.RedLock, resource string, ttl time.Duration) *DistributedLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &DistributedLock{
		lockManager: lockManager,
		resource:    resource,
		lockName:    fmt.Sprintf("lock:%s", resource),
		ttl:         ttl,
	}
}

// TryAcquire attempts to take the lock and starts renewal on success
func (dl *DistributedLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := dl.lockManager.Lock(ctx, dl.lockName, dl.ttl)
	if err != nil {
		logger.Debug("lock held elsewhere",
			zap.String("lock_name", dl.lockName),
		)
		return false, nil
	}
	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	dl.mu.Lock()
	dl.locked = true
	dl.stop = make(chan struct{})
	stop := dl.stop
	dl.mu.Unlock()

	logger.Debug("lock acquired",
		zap.String("lock_name", dl.lockName),
		zap.Duration("ttl", dl.ttl),
	)

	go dl.renew(stop)

	return true, nil
}

// Release unlocks; an already-expired lock is not an error
func (dl *DistributedLock) Release(ctx context.Context) error {
	dl.mu.Lock()
	if !dl.locked {
		dl.mu.Unlock()
		return nil
	}
	dl.locked = false
	close(dl.stop)
	dl.mu.Unlock()

	if err := dl.lockManager.UnLock(ctx, dl.lockName); err != nil {
		logger.Warn("failed to release lock (may have expired)",
			zap.String("lock_name", dl.lockName),
			zap.Error(err),
		)
	}
	return nil
}

// renew re-acquires the lock at 2/3 of its TTL; redlock has no extend call
func (dl *DistributedLock) renew(stop <-chan struct{}) {
	ticker := time.NewTicker(dl.ttl * 2 / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := dl.lockManager.UnLock(ctx, dl.lockName)
			var expiry time.Duration
			if err == nil {
				expiry, err = dl.lockManager.Lock(ctx, dl.lockName, dl.ttl)
			}
			cancel()

			if err != nil || expiry <= 0 {
				logger.Error("lock lost during renewal",
					zap.String("lock_name", dl.lockName),
					zap.Error(err),
				)
				dl.mu.Lock()
				dl.locked = false
				dl.mu.Unlock()
				return
			}
		}
	}
}

// Held reports whether the lock is still owned
func (dl *DistributedLock) Held() bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.locked
}

// Resource returns the guarded resource name
func (dl *DistributedLock) Resource() string {
	return dl.resource
}
