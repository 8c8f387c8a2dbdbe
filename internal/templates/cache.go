package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sungwon/post-office/internal/mail"
)

// redisClient is the subset of the go-redis client used by RedisCache.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache stores templates as JSON under post_office:template keys.
type RedisCache struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisCache returns a cache whose entries expire after ttl. A zero ttl
// keeps entries until they are invalidated.
func NewRedisCache(client redisClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(name, language string) string {
	return fmt.Sprintf("post_office:template:%s:%s", name, language)
}

func (c *RedisCache) Get(ctx context.Context, name, language string) (*mail.Template, error) {
	data, err := c.client.Get(ctx, cacheKey(name, language)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get template: %w", err)
	}

	var t mail.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode cached template: %w", err)
	}
	return &t, nil
}

func (c *RedisCache) Set(ctx context.Context, t *mail.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(t.Name, t.Language), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set template: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, name, language string) error {
	if err := c.client.Del(ctx, cacheKey(name, language)).Err(); err != nil {
		return fmt.Errorf("redis delete template: %w", err)
	}
	return nil
}
