package providers

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get when the key has no cached projection.
// Callers use it to tell an ordinary miss apart from a backend failure.
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider is the byte-level store behind the projection cache.
type CacheProvider interface {
	// Get retrieves a cached value, or ErrCacheMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an expiration in seconds.
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
