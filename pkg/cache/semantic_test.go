package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/pkg/cache"
)

// unitVec returns a vector pointing along one axis so that distinct indexes
// are orthogonal (similarity 0) and equal indexes are identical (similarity 1).
func unitVec(axis, dim int) []float32 {
	v := make([]float32, dim)
	v[axis%dim] = 1
	return v
}

func TestSemanticCache_FindSimilar(t *testing.T) {
	c := cache.NewSemanticCache(cache.SemanticCacheConfig{
		Capacity:  100,
		Threshold: 0.85,
	})

	stored := c.Store("what is the password policy", []float32{1, 0, 0}, "rotate every 90 days", 0.95)
	require.True(t, stored)

	// A near-identical direction clears the threshold.
	entry, similarity, ok := c.FindSimilar([]float32{0.99, 0.05, 0})
	require.True(t, ok)
	assert.Equal(t, "rotate every 90 days", entry.Response)
	assert.GreaterOrEqual(t, similarity, 0.85)
	assert.Equal(t, 1, entry.UsageCount)

	// An orthogonal query misses.
	_, _, ok = c.FindSimilar([]float32{0, 1, 0})
	assert.False(t, ok)
}

func TestSemanticCache_HitDoesNotRefreshTimestamp(t *testing.T) {
	c := cache.NewSemanticCache(cache.SemanticCacheConfig{Capacity: 100, Threshold: 0.85})

	c.Store("q", []float32{1, 0}, "a", 0.9)
	entry, _, ok := c.FindSimilar([]float32{1, 0})
	require.True(t, ok)
	first := entry.Timestamp

	time.Sleep(5 * time.Millisecond)
	entry, _, ok = c.FindSimilar([]float32{1, 0})
	require.True(t, ok)
	assert.Equal(t, first, entry.Timestamp, "hits bump usage, not recency")
	assert.Equal(t, 2, entry.UsageCount)
}

func TestSemanticCache_HitReturnsDetachedCopy(t *testing.T) {
	c := cache.NewSemanticCache(cache.SemanticCacheConfig{Capacity: 100, Threshold: 0.85})
	c.Store("q", []float32{1, 0}, "a", 0.9)

	first, _, ok := c.FindSimilar([]float32{1, 0})
	require.True(t, ok)
	assert.Equal(t, 1, first.UsageCount)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				entry, _, ok := c.FindSimilar([]float32{1, 0})
				if ok && entry.UsageCount < 1 {
					t.Error("usage count lost")
				}
			}
		}()
	}
	wg.Wait()

	// Copies handed out earlier never see later hits.
	assert.Equal(t, 1, first.UsageCount)
	last, _, ok := c.FindSimilar([]float32{1, 0})
	require.True(t, ok)
	assert.Equal(t, 802, last.UsageCount)
}

func TestSemanticCache_QualityFloor(t *testing.T) {
	c := cache.NewSemanticCache(cache.SemanticCacheConfig{
		Capacity:   100,
		Threshold:  0.85,
		MinQuality: 0.7,
	})

	assert.False(t, c.Store("weak answer", []float32{1, 0}, "maybe", 0.5))
	assert.Equal(t, 0, c.Len())

	assert.True(t, c.Store("solid answer", []float32{1, 0}, "definitely", 0.9))
	assert.Equal(t, 1, c.Len())
}

func TestSemanticCache_BatchEviction(t *testing.T) {
	c := cache.NewSemanticCache(cache.SemanticCacheConfig{
		Capacity:  100,
		Threshold: 0.85,
	})

	const total = 120
	base := time.Now().Add(-time.Duration(total) * time.Second)
	entries := make([]models.SemanticCacheEntry, total)
	for i := 0; i < total; i++ {
		entries[i] = models.SemanticCacheEntry{
			QueryText: fmt.Sprintf("query-%03d", i),
			QueryVec:  unitVec(i, total),
			Response:  "answer",
			Quality:   0.9,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}

	stored := c.StoreBatch(entries)
	assert.Equal(t, total, stored)

	// 120 entries over a 100 bound drops the oldest 20%: 24 entries.
	assert.Equal(t, 96, c.Len())
	for i := 0; i < 24; i++ {
		assert.False(t, c.Contains(fmt.Sprintf("query-%03d", i)), "oldest entries evicted")
	}
	for i := 24; i < total; i++ {
		assert.True(t, c.Contains(fmt.Sprintf("query-%03d", i)), "newer entries kept")
	}
}

func TestSemanticCache_StoreUnderCapacityKeepsAll(t *testing.T) {
	c := cache.NewSemanticCache(cache.SemanticCacheConfig{Capacity: 100, Threshold: 0.85})

	for i := 0; i < 100; i++ {
		c.Store(fmt.Sprintf("query-%d", i), unitVec(i, 100), "answer", 0.9)
	}
	assert.Equal(t, 100, c.Len(), "no eviction at exactly capacity")
}
