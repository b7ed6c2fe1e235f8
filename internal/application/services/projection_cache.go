package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/internal/domain/providers"
)

const projectionCacheTTLSeconds = 6 * 60 * 60

// ProjectionCache memoizes completed projections keyed by a digest of the
// input bundle. Because the build is a pure function of its inputs, a digest
// hit can be served without rerunning the pipeline.
type ProjectionCache struct {
	cache  providers.CacheProvider
	logger zerolog.Logger
}

// NewProjectionCache creates a projection cache on top of a cache provider.
func NewProjectionCache(cache providers.CacheProvider, logger zerolog.Logger) *ProjectionCache {
	return &ProjectionCache{
		cache:  cache,
		logger: logger.With().Str("service", "projection-cache").Logger(),
	}
}

// BundleDigest computes the cache key for a bundle from its canonical JSON
// form.
func BundleDigest(bundle entities.CaseBundle) string {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return "chronology:v1:" + bundle.CaseID
	}
	sum := sha256.Sum256(raw)
	return "chronology:v1:" + hex.EncodeToString(sum[:])
}

// Get returns the cached projection for a bundle, or false on miss.
func (c *ProjectionCache) Get(ctx context.Context, bundle entities.CaseBundle) (*entities.Projection, bool) {
	key := BundleDigest(bundle)
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			c.logger.Warn().Str("key", key).Err(err).Msg("projection cache unavailable")
		}
		return nil, false
	}
	var projection entities.Projection
	if err := json.Unmarshal(raw, &projection); err != nil {
		c.logger.Warn().Str("key", key).Err(err).Msg("cached projection is corrupt, evicting")
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}
	return &projection, true
}

// Put stores a projection under its bundle digest. Failures are logged and
// swallowed; caching is best effort.
func (c *ProjectionCache) Put(ctx context.Context, bundle entities.CaseBundle, projection *entities.Projection) {
	raw, err := json.Marshal(projection)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to marshal projection for cache")
		return
	}
	key := BundleDigest(bundle)
	if err := c.cache.Set(ctx, key, raw, projectionCacheTTLSeconds); err != nil {
		c.logger.Warn().Str("key", key).Err(err).Msg("failed to cache projection")
	}
}
