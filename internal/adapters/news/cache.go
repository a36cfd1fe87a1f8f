package news

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/adapters/redis"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// Cache holds recently fetched news lists per company and day window
type Cache interface {
	Get(ctx context.Context, company string, days int) ([]models.NewsItem, bool)
	Set(ctx context.Context, company string, days int, items []models.NewsItem) error
}

// RedisCache stores news lists as JSON in redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates redis-backed news cache
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, company string, days int) ([]models.NewsItem, bool) {
	var items []models.NewsItem
	err := c.client.GetJSON(ctx, cacheKey(company, days), &items)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			logger.Warn("news cache read failed", zap.String("company", company), zap.Error(err))
		}
		return nil, false
	}
	return items, true
}

func (c *RedisCache) Set(ctx context.Context, company string, days int, items []models.NewsItem) error {
	return c.client.SetJSON(ctx, cacheKey(company, days), items, c.ttl)
}

func cacheKey(company string, days int) string {
	return fmt.Sprintf("news:%s:%dd", company, days)
}
