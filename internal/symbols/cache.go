package symbols

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ShayCichocki/fission/internal/inject"
	"github.com/ShayCichocki/fission/pkg/models"
)

// DefaultCacheSize bounds the resolution cache when not configured.
const DefaultCacheSize = 1024

// lookup caches both outcomes of a resolution, so repeated misses for the
// same identifier do not hit the underlying provider again.
type lookup struct {
	sym models.ResolvedSymbol
	ok  bool
}

// CachedResolver wraps an expensive provider with a bounded LRU cache.
// Useful when resolution walks a real codebase or calls out of process; an
// in-memory Snapshot does not need it.
type CachedResolver struct {
	inner  inject.Resolver
	cache  *lru.Cache[string, lookup]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedResolver creates a caching wrapper around the given resolver.
// Non-positive sizes fall back to DefaultCacheSize.
func NewCachedResolver(inner inject.Resolver, size int) (*CachedResolver, error) {
	if inner == nil {
		return nil, fmt.Errorf("symbols: nil resolver")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, lookup](size)
	if err != nil {
		return nil, fmt.Errorf("symbols: create cache: %w", err)
	}
	return &CachedResolver{inner: inner, cache: cache}, nil
}

// Resolve answers from the cache when possible, consulting the underlying
// provider once per identifier.
func (c *CachedResolver) Resolve(name string) (models.ResolvedSymbol, bool) {
	if cached, ok := c.cache.Get(name); ok {
		c.hits.Add(1)
		return cached.sym, cached.ok
	}

	c.misses.Add(1)
	sym, ok := c.inner.Resolve(name)
	c.cache.Add(name, lookup{sym: sym, ok: ok})
	return sym, ok
}

// Stats returns the cache hit and miss counts.
func (c *CachedResolver) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
