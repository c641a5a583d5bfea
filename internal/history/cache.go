package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studyhive/realtime-service/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// PageResult is one cached page of room history.
type PageResult struct {
	Messages []domain.ChatMessage `json:"messages"`
	HasMore  bool                 `json:"has_more"`
}

// PageCache caches history pages keyed by query parameters.
type PageCache interface {
	BuildKey(roomID int64, page, size int, before time.Time) string
	Get(ctx context.Context, key string) (*PageResult, error)
	Set(ctx context.Context, key string, result *PageResult, ttl time.Duration) error
	Invalidate(ctx context.Context, roomID int64) error
	Close() error
}

// RedisPageCache implements PageCache on a shared Redis client.
type RedisPageCache struct {
	client *redis.Client
	prefix string
}

func NewRedisPageCache(client *redis.Client, prefix string) *RedisPageCache {
	if prefix == "" {
		prefix = "chat:history"
	}
	return &RedisPageCache{client: client, prefix: prefix}
}

func (c *RedisPageCache) BuildKey(roomID int64, page, size int, before time.Time) string {
	cursor := "start"
	if !before.IsZero() {
		cursor = fmt.Sprintf("%d", before.UnixMilli())
	}
	return fmt.Sprintf("%s:%d:%d:%d:%s", c.prefix, roomID, page, size, cursor)
}

func (c *RedisPageCache) Get(ctx context.Context, key string) (*PageResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var result PageResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &result, nil
}

func (c *RedisPageCache) Set(ctx context.Context, key string, result *PageResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

// Invalidate drops every cached page of a room. Called after a room
// purge so readers never see deleted history.
func (c *RedisPageCache) Invalidate(ctx context.Context, roomID int64) error {
	pattern := fmt.Sprintf("%s:%d:*", c.prefix, roomID)

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

func (c *RedisPageCache) Close() error {
	// The client is shared; the owner closes it.
	return nil
}
