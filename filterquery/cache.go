package filterquery

import (
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// ProgramCache stores compiled CEL programs keyed by their source expression.
// Values are never part of an expression, so specs that differ only in values share a program.
type ProgramCache interface {
	// Get returns the cached program, or false on a miss or an expired entry
	Get(expr string) (cel.Program, bool)

	Set(expr string, prg cel.Program)

	// Invalidate drops every entry
	Invalidate()

	Len() int
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Set to 0 for no expiration.
	TTL time.Duration

	// MaxEntries bounds the cache; the oldest entry is evicted when it is full.
	MaxEntries int
}

// DefaultCacheConfig returns sensible defaults for program caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        0,
		MaxEntries: 256,
	}
}

type cacheEntry struct {
	prg      cel.Program
	cachedAt time.Time
}

// InMemoryProgramCache is a map-backed ProgramCache.
// Thread-safe for concurrent access
type InMemoryProgramCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	mu      sync.RWMutex
}

// NewInMemoryProgramCache creates a new in-memory program cache
func NewInMemoryProgramCache(config CacheConfig) *InMemoryProgramCache {
	return &InMemoryProgramCache{
		entries: make(map[string]cacheEntry),
		config:  config,
	}
}

func (c *InMemoryProgramCache) Get(expr string) (cel.Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[expr]
	if !ok {
		return nil, false
	}
	if c.config.TTL > 0 && time.Since(e.cachedAt) > c.config.TTL {
		return nil, false
	}
	return e.prg, true
}

func (c *InMemoryProgramCache) Set(expr string, prg cel.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[expr]; !exists && c.config.MaxEntries > 0 && len(c.entries) >= c.config.MaxEntries {
		c.evictOldest()
	}
	c.entries[expr] = cacheEntry{prg: prg, cachedAt: time.Now()}
}

func (c *InMemoryProgramCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

func (c *InMemoryProgramCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// evictOldest must be called with the write lock held.
func (c *InMemoryProgramCache) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.cachedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.cachedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
