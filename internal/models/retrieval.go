package models

// ScoreBreakdown records the per-source scores that produced a fused result.
type ScoreBreakdown struct {
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
	CombinedScore float64 `json:"combined_score"`
}

// RetrievalResult is a scored reference to a DocumentChunk, created fresh per
// query and never persisted beyond cache TTL.
type RetrievalResult struct {
	ChunkID        string         `json:"chunk_id"`
	Content        string         `json:"content"`
	Heading        string         `json:"heading,omitempty"`
	Framework      string         `json:"framework,omitempty"`
	ControlID      string         `json:"control_id,omitempty"`
	Section        string         `json:"section,omitempty"`
	RelevanceScore float64        `json:"relevance_score"`
	Breakdown      ScoreBreakdown `json:"score_breakdown"`
	Citation       string         `json:"citation"`
}

// Confidence tiers for an assembled context.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ContextTemplate is the per-query output bundle handed to answer generation.
// Confidence is a pure function of AvgRelevance over the final chunk set.
type ContextTemplate struct {
	Query           string            `json:"query"`
	RetrievedChunks []RetrievalResult `json:"retrieved_chunks"`
	ContextText     string            `json:"context_text"`
	Citations       []string          `json:"citations"`
	TotalChunks     int               `json:"total_chunks"`
	AvgRelevance    float64           `json:"avg_relevance"`
	Confidence      Confidence        `json:"confidence"`
}
