// Package retrieval implements the hybrid retrieval engine: cache lookup,
// query embedding, concurrent vector and keyword search, score fusion, the
// relevance gate, and context assembly.
package retrieval

import (
	"context"
	"log/slog"
	"sync"

	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/internal/types"
	"github.com/complyra/ragsafe/pkg/cache"
)

// Config carries every tuning knob of the engine. Values come from
// pkg/config; zero fields fall back to the tuned defaults.
type Config struct {
	TopK             int
	RerankLimit      int
	SemanticWeight   float64
	KeywordWeight    float64
	MinRelevance     float64
	FallbackResults  int
	ConfidenceHigh   float64
	ConfidenceMedium float64
}

func (c *Config) applyDefaults() {
	if c.TopK == 0 {
		c.TopK = 12
	}
	if c.RerankLimit == 0 {
		c.RerankLimit = 6
	}
	if c.SemanticWeight == 0 {
		c.SemanticWeight = 0.7
	}
	if c.KeywordWeight == 0 {
		c.KeywordWeight = 0.3
	}
	if c.MinRelevance == 0 {
		c.MinRelevance = 0.35
	}
	if c.FallbackResults == 0 {
		c.FallbackResults = 2
	}
	if c.ConfidenceHigh == 0 {
		c.ConfidenceHigh = 0.8
	}
	if c.ConfidenceMedium == 0 {
		c.ConfidenceMedium = 0.5
	}
}

// Engine runs hybrid retrieval for one corpus. Construct once at process
// start and share across request handlers; it is safe for concurrent use.
type Engine struct {
	config   Config
	embedder types.Embedder
	vector   types.VectorSearcher
	keyword  types.KeywordSearcher
	queries  *cache.QueryCache
	logger   *slog.Logger
}

func NewEngine(config Config, embedder types.Embedder, vector types.VectorSearcher,
	keyword types.KeywordSearcher, queries *cache.QueryCache, logger *slog.Logger) *Engine {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:   config,
		embedder: embedder,
		vector:   vector,
		keyword:  keyword,
		queries:  queries,
		logger:   logger,
	}
}

// Retrieve returns the assembled context for query under filters. When
// useCache is set, an exact-cache hit short-circuits the whole pipeline and
// a fresh non-empty result is stored on the way out.
//
// Provider failures degrade rather than fail: a broken embedder drops the
// vector source, one failed searcher leaves single-source ranking, and both
// sources failing yields an empty low-confidence template. None is an error.
func (e *Engine) Retrieve(ctx context.Context, query string, filters models.Filters, useCache bool) (models.ContextTemplate, error) {
	return e.RetrieveWithEmbedding(ctx, query, nil, filters, useCache)
}

// RetrieveWithEmbedding is Retrieve with a pre-computed query vector, so
// callers that already embedded the query (the semantic cache path) do not
// pay for a second provider call. A nil queryVec is embedded here.
func (e *Engine) RetrieveWithEmbedding(ctx context.Context, query string, queryVec []float32, filters models.Filters, useCache bool) (models.ContextTemplate, error) {
	if err := filters.Validate(); err != nil {
		return models.ContextTemplate{}, err
	}

	if useCache && e.queries != nil {
		if entry, ok := e.queries.Get(query, filters); ok {
			e.logger.Debug("exact cache hit", "query_hash", entry.QueryHash, "hits", entry.HitCount)
			return entry.Context, nil
		}
	}

	if queryVec == nil {
		var err error
		queryVec, err = e.embedder.Embed(ctx, query)
		if err != nil {
			e.logger.Warn("query embedding failed, degrading to keyword-only retrieval", "error", err)
			queryVec = nil
		}
	}

	vectorResults, keywordResults := e.searchBoth(ctx, query, queryVec, filters)

	fused := fuse(vectorResults, keywordResults, FusionConfig{
		SemanticWeight: e.config.SemanticWeight,
		KeywordWeight:  e.config.KeywordWeight,
		RerankLimit:    e.config.RerankLimit,
	})

	final, degraded := applyGate(fused, e.config.MinRelevance, e.config.FallbackResults)
	if degraded {
		e.logger.Warn("relevance gate emptied result set, returning pre-threshold fallback",
			"query", query, "fallback", len(final))
	}

	tmpl := assemble(query, final, AssembleConfig{
		ConfidenceHigh:   e.config.ConfidenceHigh,
		ConfidenceMedium: e.config.ConfidenceMedium,
	})

	if useCache && e.queries != nil && len(final) > 0 {
		e.queries.Put(query, filters, tmpl)
	}

	return tmpl, nil
}

// EmbedQuery exposes the engine's embedder for callers that need the raw
// query vector (the semantic response cache).
func (e *Engine) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.embedder.Embed(ctx, query)
}

// InvalidateTenant drops the tenant's exact-cache entries. The ingestion
// path calls this whenever that tenant's corpus changes.
func (e *Engine) InvalidateTenant(tenantID string) int {
	if e.queries == nil {
		return 0
	}
	return e.queries.Invalidate(tenantID)
}

// searchBoth issues vector and keyword search concurrently and joins them.
// A failed source is logged and contributes an empty list.
func (e *Engine) searchBoth(ctx context.Context, query string, queryVec []float32, filters models.Filters) (vector, keyword []models.RetrievalResult) {
	var wg sync.WaitGroup
	var vectorErr, keywordErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		if queryVec == nil {
			return
		}
		vector, vectorErr = e.vector.Search(ctx, queryVec, filters, e.config.TopK)
	}()
	go func() {
		defer wg.Done()
		keyword, keywordErr = e.keyword.Search(ctx, query, filters, e.config.TopK)
	}()
	wg.Wait()

	if vectorErr != nil {
		e.logger.Warn("vector search failed, degrading to keyword ranking", "error", vectorErr)
		vector = nil
	}
	if keywordErr != nil {
		e.logger.Warn("keyword search failed, degrading to semantic ranking", "error", keywordErr)
		keyword = nil
	}
	return vector, keyword
}
