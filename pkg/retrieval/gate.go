package retrieval

import "github.com/complyra/ragsafe/internal/models"

// lowConfidenceMarker flags fallback citations so callers treat them
// skeptically.
const lowConfidenceMarker = " [low confidence]"

// applyGate discards results below the relevance threshold. If nothing
// survives but the fused list was non-empty, it returns the top fallbackN
// pre-threshold results with marked citations instead of an empty set: the
// caller always gets something to ground an answer in.
func applyGate(fused []models.RetrievalResult, minRelevance float64, fallbackN int) (results []models.RetrievalResult, degraded bool) {
	for _, r := range fused {
		if r.RelevanceScore >= minRelevance {
			results = append(results, r)
		}
	}
	if len(results) > 0 || len(fused) == 0 {
		return results, false
	}

	if fallbackN <= 0 {
		fallbackN = 2
	}
	if fallbackN > len(fused) {
		fallbackN = len(fused)
	}
	results = make([]models.RetrievalResult, fallbackN)
	copy(results, fused[:fallbackN])
	for i := range results {
		results[i].Citation += lowConfidenceMarker
	}
	return results, true
}
