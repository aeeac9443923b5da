package models

import "time"

// CacheEntry is an exact-match cache record for a prior retrieval, keyed by
// the hash of the normalized query text plus the canonical filter set.
type CacheEntry struct {
	QueryHash       string
	QueryText       string
	Filters         Filters
	RetrievedChunks []RetrievalResult
	Context         ContextTemplate
	TenantID        string
	ExpiresAt       time.Time
	HitCount        int
	LastAccessed    time.Time
}

// SemanticCacheEntry is a similarity-match cache record for a previously
// generated answer. Recency for eviction is insertion time; hits bump
// UsageCount but never Timestamp.
type SemanticCacheEntry struct {
	QueryText  string
	QueryVec   []float32
	Response   string
	Quality    float64
	Timestamp  time.Time
	UsageCount int
}
