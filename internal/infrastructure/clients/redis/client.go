package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/casevault/citeline/pkg/config"
)

// Client wraps the go-redis connection that backs the projection cache.
type Client struct {
	client *redis.Client
}

// NewClient connects to Redis and verifies the connection before returning.
// Chronology builds proceed without a cache when this fails, so callers treat
// an error here as a degradation rather than a fatal condition.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// Client returns the underlying Redis client.
func (c *Client) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping verifies the connection to Redis.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
