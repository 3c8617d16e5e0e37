package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefixSeen is the prefix of fingerprint keys.
const KeyPrefixSeen = "sitecheck:seen:"

// SeenKey returns the Redis key remembering a fingerprint.
func SeenKey(fingerprint string) string {
	return KeyPrefixSeen + fingerprint
}

// RedisCache shares one dedup window across every worker process.
type RedisCache struct {
	client *redis.Client
	window time.Duration
}

func NewRedisCache(client *redis.Client, window time.Duration) *RedisCache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisCache{client: client, window: window}
}

func (c *RedisCache) Seen(ctx context.Context, fingerprint string) (bool, error) {
	set, err := c.client.SetNX(ctx, SeenKey(fingerprint), 1, c.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record fingerprint: %w", err)
	}
	return !set, nil
}

func (c *RedisCache) Forget(ctx context.Context, fingerprint string) error {
	if err := c.client.Del(ctx, SeenKey(fingerprint)).Err(); err != nil {
		return fmt.Errorf("failed to forget fingerprint: %w", err)
	}
	return nil
}
