// Package cache wraps the Redis client used for sessions and view caches.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// ViewCache invalidates cached read models after committed transitions.
type ViewCache struct {
	client *redis.Client
}

// NewViewCache wraps a redis client.
func NewViewCache(client *redis.Client) *ViewCache {
	return &ViewCache{client: client}
}

// Invalidate drops the cached view for one entity plus its listing pages.
func (c *ViewCache) Invalidate(ctx context.Context, entity string, id int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	keys := []string{
		fmt.Sprintf("view:%s:%d", entity, id),
		fmt.Sprintf("view:%s:list", entity),
	}
	return c.client.Del(ctx, keys...).Err()
}
