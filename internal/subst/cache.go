package subst

import (
	"sync"
	"sync/atomic"
)

// Cache keeps built ciphers keyed by seed. Two callers missing on the same
// seed may both build it; the first stored value wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]*Cipher
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int64]*Cipher)}
}

// Get returns the cipher for seed, building and storing it on a miss. The
// second result reports whether the value came from the cache.
func (c *Cache) Get(seed int64) (*Cipher, bool) {
	c.mu.RLock()
	cached, ok := c.entries[seed]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return cached, true
	}

	c.misses.Add(1)
	built := New(seed)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[seed]; ok {
		return existing, false
	}
	c.entries[seed] = built
	return built, false
}

// Len returns the number of cached seeds.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge drops every cached cipher.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[int64]*Cipher)
	c.mu.Unlock()
}
