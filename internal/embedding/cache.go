package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sync"
)

// Cache stores embeddings keyed by source image and model version.
// A lookup only hits when the stored version equals the requested one.
type Cache interface {
	Get(ctx context.Context, key, version string) ([]float32, bool, error)
	Put(ctx context.Context, key, version string, vector []float32) error
}

// CacheKey derives a cache key from encoded image bytes.
func CacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	version string
	vector  []float32
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key, version string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.version != version {
		return nil, false, nil
	}
	return slices.Clone(e.vector), true, nil
}

func (c *MemoryCache) Put(_ context.Context, key, version string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{version: version, vector: slices.Clone(vector)}
	return nil
}
