package retrieval

import (
	"sort"

	"github.com/complyra/ragsafe/internal/models"
)

// FusionConfig holds the score-fusion weights and the rerank cutoff.
// Semantic similarity is weighted higher than keyword rank because exact
// lexical overlap is rare in paraphrased compliance questions.
type FusionConfig struct {
	SemanticWeight float64
	KeywordWeight  float64
	RerankLimit    int
}

// fuse merges vector and keyword results into one deduplicated list ordered
// by combined score. A chunk found by both sources gets the weighted blend;
// a chunk found by one source keeps that source's score as its combined
// score. The output is truncated to the rerank limit.
func fuse(vector, keyword []models.RetrievalResult, cfg FusionConfig) []models.RetrievalResult {
	merged := make(map[string]models.RetrievalResult, len(vector)+len(keyword))

	for _, r := range vector {
		r.Breakdown.CombinedScore = r.Breakdown.SemanticScore
		r.RelevanceScore = r.Breakdown.CombinedScore
		merged[r.ChunkID] = r
	}

	for _, r := range keyword {
		if existing, ok := merged[r.ChunkID]; ok {
			existing.Breakdown.KeywordScore = r.Breakdown.KeywordScore
			existing.Breakdown.CombinedScore = cfg.SemanticWeight*existing.Breakdown.SemanticScore +
				cfg.KeywordWeight*r.Breakdown.KeywordScore
			existing.RelevanceScore = existing.Breakdown.CombinedScore
			merged[r.ChunkID] = existing
			continue
		}
		r.Breakdown.CombinedScore = r.Breakdown.KeywordScore
		r.RelevanceScore = r.Breakdown.CombinedScore
		merged[r.ChunkID] = r
	}

	fused := make([]models.RetrievalResult, 0, len(merged))
	for _, r := range merged {
		fused = append(fused, r)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].RelevanceScore == fused[j].RelevanceScore {
			return fused[i].ChunkID < fused[j].ChunkID
		}
		return fused[i].RelevanceScore > fused[j].RelevanceScore
	})

	if cfg.RerankLimit > 0 && len(fused) > cfg.RerankLimit {
		fused = fused[:cfg.RerankLimit]
	}
	return fused
}
