package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/adapters/config"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// ErrCacheMiss is returned by GetJSON when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Client bundles a RedLock manager for cross-instance locks with a plain
// redis client for the news cache
type Client struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	addr        string
}

// New connects to redis and prepares the lock manager
func New(cfg *config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lockManager, err := redlock.NewRedLock(ctx, []string{"tcp://" + addr})
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	cacheClient := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := cacheClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("🧰 redis client initialized",
		zap.String("address", addr),
		zap.Int("db", cfg.DB),
	)

	return &Client{
		lockManager: lockManager,
		cache:       cacheClient,
		addr:        addr,
	}, nil
}

// LockFactory returns a factory producing redlock-backed locks
func (c *Client) LockFactory() LockFactory {
	return NewRedisLockFactory(c.lockManager)
}

// GetJSON loads key into dest. Missing keys yield ErrCacheMiss.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.cache.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SetJSON stores value as JSON with the given TTL
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.cache.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Del removes keys
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.cache.Del(ctx, keys...).Err()
}

// Health acquires and releases a short-lived lock
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	expiry, err := c.lockManager.Lock(ctx, "health:check", time.Second)
	if err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	if expiry <= 0 {
		return fmt.Errorf("redis health check failed: invalid expiry")
	}
	_ = c.lockManager.UnLock(ctx, "health:check")

	return nil
}

// Close closes the cache connection pool
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}
	logger.Info("closing redis client", zap.String("address", c.addr))
	if err := c.cache.Close(); err != nil {
		return fmt.Errorf("failed to close redis: %w", err)
	}
	return nil
}
