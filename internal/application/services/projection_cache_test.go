package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/internal/domain/providers"
)

type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", providers.ErrCacheMiss, key)
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ int) error {
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func TestProjectionCache_RoundTrip(t *testing.T) {
	cache := NewProjectionCache(newMemoryCache(), zerolog.Nop())
	bundle := entities.CaseBundle{CaseID: "case-1", Events: []entities.Event{{EventID: "ev1"}}}
	projection := &entities.Projection{Entries: []entities.Entry{{EntryID: "ev1", CitationDisplay: "p. 1"}}}

	_, ok := cache.Get(context.Background(), bundle)
	assert.False(t, ok, "miss before put")

	cache.Put(context.Background(), bundle, projection)

	got, ok := cache.Get(context.Background(), bundle)
	require.True(t, ok)
	assert.Equal(t, projection.Entries, got.Entries)
}

func TestProjectionCache_CorruptValueEvicted(t *testing.T) {
	backing := newMemoryCache()
	cache := NewProjectionCache(backing, zerolog.Nop())
	bundle := entities.CaseBundle{CaseID: "case-2", Events: []entities.Event{{EventID: "ev1"}}}

	key := BundleDigest(bundle)
	backing.data[key] = []byte("{not json")

	_, ok := cache.Get(context.Background(), bundle)
	assert.False(t, ok)
	assert.NotContains(t, backing.data, key, "corrupt value is evicted")
}

func TestBundleDigest_SensitiveToContent(t *testing.T) {
	a := entities.CaseBundle{CaseID: "case-1", Events: []entities.Event{{EventID: "ev1"}}}
	b := entities.CaseBundle{CaseID: "case-1", Events: []entities.Event{{EventID: "ev2"}}}

	assert.NotEqual(t, BundleDigest(a), BundleDigest(b))
	assert.Equal(t, BundleDigest(a), BundleDigest(a))
}
