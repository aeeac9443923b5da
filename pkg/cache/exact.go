// Package cache implements the two query caches of the pipeline: an
// exact-match result cache with TTL expiry and a capacity-bounded semantic
// response cache. Both are safe for concurrent use. Cache failures are never
// fatal to retrieval; callers treat every error as a miss.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/complyra/ragsafe/internal/models"
)

// QueryCache is the exact-match cache keyed by (normalized query, canonical
// filter set). It is TTL-only: entries are never evicted for capacity, and
// hit counts are observability fields, not eviction inputs.
type QueryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*models.CacheEntry
}

func NewQueryCache(ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &QueryCache{
		ttl:     ttl,
		entries: make(map[string]*models.CacheEntry),
	}
}

// Key derives the stable cache key for a query and filter set. The hash is
// cryptographic only to avoid accidental key-space collisions across
// tenants, not for security.
func Key(query string, filters models.Filters) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized + "|" + filters.Canonical()))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached context for (query, filters) if present and fresh.
// Expiry is evaluated at read time; an expired entry is deleted and treated
// as a miss. A hit increments HitCount and updates LastAccessed. The returned
// entry is a copy; the stored one keeps mutating under the lock on later hits.
func (c *QueryCache) Get(query string, filters models.Filters) (models.CacheEntry, bool) {
	key := Key(query, filters)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return models.CacheEntry{}, false
	}
	if time.Now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		return models.CacheEntry{}, false
	}

	entry.HitCount++
	entry.LastAccessed = time.Now()
	return *entry, true
}

// Put stores a retrieval result. Two writers racing for the same key resolve
// last-writer-wins.
func (c *QueryCache) Put(query string, filters models.Filters, tmpl models.ContextTemplate) {
	entry := &models.CacheEntry{
		QueryHash:       Key(query, filters),
		QueryText:       query,
		Filters:         filters,
		RetrievedChunks: tmpl.RetrievedChunks,
		Context:         tmpl,
		TenantID:        filters.TenantID,
		ExpiresAt:       time.Now().Add(c.ttl),
	}

	c.mu.Lock()
	c.entries[entry.QueryHash] = entry
	c.mu.Unlock()
}

// Invalidate removes every entry belonging to tenantID and returns how many
// were dropped. The ingestion path calls this whenever the tenant's corpus
// changes; the cache does not infer staleness on its own.
func (c *QueryCache) Invalidate(tenantID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.TenantID == tenantID {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the current entry count.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
