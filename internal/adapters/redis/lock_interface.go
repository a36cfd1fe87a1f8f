package redis

import "context"

// Lock guards a named resource across bot instances.
// Implementations: redlock (production) and noop (single instance).
type Lock interface {
	// TryAcquire returns false without error when another holder owns the lock
	TryAcquire(ctx context.Context) (bool, error)

	Release(ctx context.Context) error

	// Held reports whether this holder still owns the lock
	Held() bool

	Resource() string
}
