package application

import (
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/repomover/internal/domain/model"
)

// DefaultValidationTTL is how long a lookup result stays fresh.
const DefaultValidationTTL = 5 * time.Minute

// cacheEntry holds one lookup result. A nil identity records "not found".
type cacheEntry struct {
	identity  *model.Identity
	fetchedAt time.Time
}

// ValidationCache maps normalized account names to recent lookup results,
// positive or negative. Expired entries are swept on every access.
type ValidationCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewValidationCache creates a cache whose entries live for ttl. A
// non-positive ttl falls back to DefaultValidationTTL.
func NewValidationCache(ttl time.Duration) *ValidationCache {
	if ttl <= 0 {
		ttl = DefaultValidationTTL
	}
	return &ValidationCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// SetClock replaces the time source. Used by tests.
func (c *ValidationCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached identity for name. hit is false on a miss; a hit
// with a nil identity is a cached "not found".
func (c *ValidationCache) Get(name string) (identity *model.Identity, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)

	entry, ok := c.entries[normalizeAccountName(name)]
	if !ok {
		return nil, false
	}
	if entry.identity == nil {
		return nil, true
	}
	id := *entry.identity
	return &id, true
}

// Put records the lookup result for name. Pass nil to cache "not found".
func (c *ValidationCache) Put(name string, identity *model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)

	entry := cacheEntry{fetchedAt: now}
	if identity != nil {
		id := *identity
		entry.identity = &id
	}
	c.entries[normalizeAccountName(name)] = entry
}

// Clear drops every entry.
func (c *ValidationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of live entries.
func (c *ValidationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep(c.now())
	return len(c.entries)
}

// sweep removes entries older than the TTL. Callers hold mu.
func (c *ValidationCache) sweep(now time.Time) {
	for key, entry := range c.entries {
		if now.Sub(entry.fetchedAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}

func normalizeAccountName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
