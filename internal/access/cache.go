package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores the flat effective permission name set per user. Only the
// authorization hot path reads it; the management dialog always resolves
// fresh. Invalidation happens synchronously inside every mutation so a
// just-revoked permission is never still visible.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached name set and whether it was present.
func (c *Cache) Get(ctx context.Context, userID int64) ([]string, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("access: cache get: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, false, fmt.Errorf("access: cache decode: %w", err)
	}
	return names, true, nil
}

// Set stores the name set for a user.
func (c *Cache) Set(ctx context.Context, userID int64, names []string) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("access: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("access: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry for a user.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("access: cache invalidate: %w", err)
	}
	return nil
}

func (c *Cache) key(userID int64) string {
	return fmt.Sprintf("access:effective:%d", userID)
}
