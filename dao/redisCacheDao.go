package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisCachePrefix = "dashboard:cache:"

// RedisCache stores each source under its own key with a TTL, so several
// dashboards on one network can share the last known state.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	if err := c.client.Set(ctx, redisCachePrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("store cache entry %q in Redis: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Load(ctx context.Context) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	iter := c.client.Scan(ctx, 0, redisCachePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		val, err := c.client.Get(ctx, full).Bytes()
		if err == redis.Nil {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read cache entry %q from Redis: %w", full, err)
		}
		out[strings.TrimPrefix(full, redisCachePrefix)] = json.RawMessage(val)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan Redis cache: %w", err)
	}
	return out, nil
}
