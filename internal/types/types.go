package types

import (
	"context"

	"github.com/complyra/ragsafe/internal/models"
)

// Core collaborator interfaces. The retrieval pipeline consumes these; the
// concrete implementations live in pkg/llm and pkg/index.

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer from an assembled context block. It is an
// opaque black box; whatever it returns is exactly what the verifier checks.
type Generator interface {
	Generate(ctx context.Context, contextText, query string) (string, error)
}

// VectorSearcher performs approximate-nearest-neighbor lookup by cosine
// similarity, applying the filter set before scoring.
type VectorSearcher interface {
	Search(ctx context.Context, queryVec []float32, filters models.Filters, topK int) ([]models.RetrievalResult, error)
}

// KeywordSearcher performs ranked full-text search over the same corpus,
// applying the same filter set before scoring.
type KeywordSearcher interface {
	Search(ctx context.Context, query string, filters models.Filters, topK int) ([]models.RetrievalResult, error)
}
