package intent

import (
	"sync"
	"time"

	"github.com/presage-dev/presage/pkg/vtree"
)

// CachedPrediction is one pre-fetched patch list waiting for its
// observation to come true.
type CachedPrediction struct {
	Patches    []vtree.Patch
	Confidence float64
	StoredAt   time.Time
}

// Cache holds pre-computed patches keyed by observable and predicted
// value. Entries are consumed on match, dropped on mismatch, and
// expire after the TTL.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*CachedPrediction
}

// NewCache creates a prediction cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]*CachedPrediction),
	}
}

func cacheKey(observableID, value string) string {
	return observableID + "\x00" + value
}

// Put stores patches for a predicted observation.
func (c *Cache) Put(observableID, value string, patches []vtree.Patch, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(observableID, value)] = &CachedPrediction{
		Patches:    patches,
		Confidence: confidence,
		StoredAt:   time.Now(),
	}
}

// Take returns and removes the entry for an observation, or nil if
// none exists or it has expired.
func (c *Cache) Take(observableID, value string) *CachedPrediction {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(observableID, value)
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	delete(c.entries, key)
	if time.Since(e.StoredAt) > c.ttl {
		return nil
	}
	return e
}

// Discard removes every entry belonging to an observable, regardless
// of predicted value.
func (c *Cache) Discard(observableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := observableID + "\x00"
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

// Sweep drops expired entries.
func (c *Cache) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if now.Sub(e.StoredAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
