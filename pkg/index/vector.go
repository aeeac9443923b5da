package index

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/internal/types"
)

// VectorIndex performs cosine-similarity ANN search over stored embeddings.
// Implements types.VectorSearcher.
type VectorIndex struct {
	ix *Index
}

func (v *VectorIndex) Search(ctx context.Context, queryVec []float32, filters models.Filters, topK int) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		topK = 12
	}

	where, args := filterPredicates(filters, 1)

	// <=> is cosine distance; similarity = 1 - distance.
	query := fmt.Sprintf(`
		SELECT chunk_id, content, heading, framework, control_id, section,
			1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE embedding IS NOT NULL%s
		ORDER BY embedding <=> $1
		LIMIT %d`,
		v.ix.config.TableName, where, topK)

	queryArgs := append([]any{pgvector.NewVector(queryVec)}, args...)
	rows, err := v.ix.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, &types.ProviderError{Provider: "vector index", Err: err}
	}
	defer rows.Close()

	var results []models.RetrievalResult
	for rows.Next() {
		var r models.RetrievalResult
		var similarity float64
		err := rows.Scan(&r.ChunkID, &r.Content, &r.Heading, &r.Framework,
			&r.ControlID, &r.Section, &similarity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if similarity < 0 {
			similarity = 0
		}
		r.Breakdown.SemanticScore = similarity
		r.RelevanceScore = similarity
		r.Citation = citationFor(r)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.ProviderError{Provider: "vector index", Err: err}
	}

	return results, nil
}

func citationFor(r models.RetrievalResult) string {
	c := models.DocumentChunk{
		ChunkID:   r.ChunkID,
		Heading:   r.Heading,
		Framework: r.Framework,
		ControlID: r.ControlID,
	}
	return c.Citation()
}
