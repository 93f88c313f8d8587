package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func InitRedis(addr, password string, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", addr))
	return rdb, nil
}

// RedisRateCache stores exchange rates as decimal strings so every replica
// quotes from the same value within the TTL.
type RedisRateCache struct {
	rdb    redis.Cmdable
	logger *zap.Logger
}

func NewRedisRateCache(rdb redis.Cmdable, logger *zap.Logger) *RedisRateCache {
	return &RedisRateCache{rdb: rdb, logger: logger}
}

func (c *RedisRateCache) GetRate(ctx context.Context, key string) (decimal.Decimal, bool) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("rate cache read failed", zap.String("key", key), zap.Error(err))
		}
		return decimal.Zero, false
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		c.logger.Warn("rate cache holds invalid value", zap.String("key", key), zap.String("value", raw))
		return decimal.Zero, false
	}
	return rate, true
}

func (c *RedisRateCache) SetRate(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, rate.String(), ttl).Err()
}
