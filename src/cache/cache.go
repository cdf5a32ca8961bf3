// Package cache is a small JSON-over-Redis TTL cache for hot-path reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LatestCandleTTL = 300 * time.Second
	AnalysisTTL     = 1800 * time.Second
)

// LatestCandleKey is e.g. "binance:BTC/USDT:latest".
func LatestCandleKey(exchange, symbol string) string {
	return fmt.Sprintf("%s:%s:latest", strings.ToLower(exchange), symbol)
}

// AnalysisKey is e.g. "research:BTC/USDT:analysis".
func AnalysisKey(symbol string) string {
	return fmt.Sprintf("research:%s:analysis", symbol)
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

// Get decodes the cached value into dst. A miss returns false with no error.
func (c *RedisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
