package redis

import (
	"context"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
)

// LockFactory creates resource locks
type LockFactory interface {
	NewLock(resource string, ttl time.Duration) Lock
}

// RedisLockFactory creates redlock-based locks
type RedisLockFactory struct {
	lockManager *redlock.RedLock
}

// NewRedisLockFactory creates new redlock factory
func NewRedisLockFactory(lockManager *redlock.RedLock) *RedisLockFactory {
	return &RedisLockFactory{lockManager: lockManager}
}

// NewLock creates a distributed lock for resource
func (f *RedisLockFactory) NewLock(resource string, ttl time.Duration) Lock {
	return NewDistributedLock(f.lockManager, resource, ttl)
}

// NoopLockFactory hands out locks that always succeed. Used when redis is
// disabled and the bot runs as a single instance.
type NoopLockFactory struct{}

// NewNoopLockFactory creates noop lock factory
func NewNoopLockFactory() *NoopLockFactory {
	return &NoopLockFactory{}
}

// NewLock creates a lock that is always granted
func (f *NoopLockFactory) NewLock(resource string, _ time.Duration) Lock {
	return &noopLock{resource: resource}
}

type noopLock struct {
	resource string
	held     bool
}

func (l *noopLock) TryAcquire(context.Context) (bool, error) {
	l.held = true
	return true, nil
}

func (l *noopLock) Release(context.Context) error {
	l.held = false
	return nil
}

func (l *noopLock) Held() bool       { return l.held }
func (l *noopLock) Resource() string { return l.resource }
