package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV adapts the Redis client to the small get/set surface services need,
// turning redis.Nil into a miss instead of an error.
type KV struct {
	client *redis.Client
}

// NewKV wraps a Redis client.
func NewKV(client *redis.Client) *KV {
	return &KV{client: client}
}

// Get returns the cached value and whether it was present. A nil KV always
// misses, so callers need no special case when Redis is not configured.
func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	if k == nil || k.client == nil {
		return "", false, nil
	}
	value, err := k.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores the value with a TTL. A nil KV drops the write.
func (k *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if k == nil || k.client == nil {
		return nil
	}
	if err := k.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
