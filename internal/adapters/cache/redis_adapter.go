package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/casevault/citeline/internal/domain/providers"
	redisclient "github.com/casevault/citeline/internal/infrastructure/clients/redis"
)

// RedisAdapter backs the projection cache with a Redis instance shared by
// chronology workers. Keys are owned by the caller; the adapter only maps
// Redis semantics onto the CacheProvider contract.
type RedisAdapter struct {
	client *redisclient.Client
}

// NewRedisAdapter wraps a Redis client as a projection cache backend.
func NewRedisAdapter(client *redisclient.Client) providers.CacheProvider {
	return &RedisAdapter{
		client: client,
	}
}

// Get retrieves a cached projection payload. An absent key is reported as
// providers.ErrCacheMiss so callers can rebuild without logging a failure.
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.Client().Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", providers.ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("projection cache get: %w", err)
	}
	return result, nil
}

// Set stores a projection payload with an expiration.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	expiration := time.Duration(expirationSeconds) * time.Second
	if err := a.client.Client().Set(ctx, key, value, expiration).Err(); err != nil {
		return fmt.Errorf("projection cache set: %w", err)
	}
	return nil
}

// Delete evicts a cached projection, used when a stored value fails to decode.
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Client().Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("projection cache delete: %w", err)
	}
	return nil
}

// Exists reports whether a projection is cached under the key.
func (a *RedisAdapter) Exists(ctx context.Context, key string) (bool, error) {
	result, err := a.client.Client().Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("projection cache exists: %w", err)
	}
	return result > 0, nil
}
