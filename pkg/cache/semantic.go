package cache

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/complyra/ragsafe/internal/models"
)

// SemanticCacheConfig bounds the similarity cache.
type SemanticCacheConfig struct {
	Capacity   int
	Threshold  float64
	MinQuality float64
}

// SemanticCache answers "have we already answered something like this" by
// comparing query embeddings against every stored entry. It is capacity
// bounded: once the bound is exceeded the oldest 20% by insertion time are
// evicted. Hits bump UsageCount but never refresh Timestamp — recency for
// eviction is insertion time, a deliberate predictability trade-off.
type SemanticCache struct {
	mu      sync.RWMutex
	config  SemanticCacheConfig
	entries []*models.SemanticCacheEntry
}

func NewSemanticCache(config SemanticCacheConfig) *SemanticCache {
	if config.Capacity <= 0 {
		config.Capacity = 100
	}
	if config.Threshold <= 0 {
		config.Threshold = 0.85
	}
	if config.MinQuality <= 0 {
		config.MinQuality = 0.7
	}
	return &SemanticCache{config: config}
}

// FindSimilar scans all entries and returns the best match with similarity
// at or above the threshold, or ok=false when nothing qualifies. The returned
// entry is a copy; UsageCount on the stored one keeps moving under the lock.
func (c *SemanticCache) FindSimilar(queryVec []float32) (entry models.SemanticCacheEntry, similarity float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	best := -1
	bestSim := 0.0
	for i, e := range c.entries {
		sim := cosineSimilarity(queryVec, e.QueryVec)
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	if best < 0 || bestSim < c.config.Threshold {
		return models.SemanticCacheEntry{}, 0, false
	}

	c.entries[best].UsageCount++
	return *c.entries[best], bestSim, true
}

// Store caches a generated answer. Responses below the quality floor are
// refused so low-quality answers cannot poison future lookups. Returns
// whether the entry was stored.
func (c *SemanticCache) Store(query string, queryVec []float32, response string, quality float64) bool {
	if quality < c.config.MinQuality {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, &models.SemanticCacheEntry{
		QueryText:  query,
		QueryVec:   queryVec,
		Response:   response,
		Quality:    quality,
		Timestamp:  time.Now(),
		UsageCount: 0,
	})
	c.evictLocked()
	return true
}

// StoreBatch caches a batch of pre-generated answers in one pass, applying
// eviction once after the whole batch is in. Used by cache warming.
func (c *SemanticCache) StoreBatch(entries []models.SemanticCacheEntry) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := 0
	now := time.Now()
	for i := range entries {
		if entries[i].Quality < c.config.MinQuality {
			continue
		}
		e := entries[i]
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		c.entries = append(c.entries, &e)
		stored++
	}
	c.evictLocked()
	return stored
}

// evictLocked drops the oldest 20% of current entries once the capacity
// bound is exceeded. Caller holds the write lock.
func (c *SemanticCache) evictLocked() {
	if len(c.entries) <= c.config.Capacity {
		return
	}
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].Timestamp.Before(c.entries[j].Timestamp)
	})
	drop := len(c.entries) / 5
	if drop < 1 {
		drop = 1
	}
	c.entries = c.entries[drop:]
}

// Len reports the current entry count.
func (c *SemanticCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Contains reports whether an entry for the exact query text is present.
func (c *SemanticCache) Contains(query string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.QueryText == query {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
