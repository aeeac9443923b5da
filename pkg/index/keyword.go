package index

import (
	"context"
	"fmt"

	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/internal/types"
)

// KeywordIndex performs ranked full-text search over chunk content using
// Postgres tsvector ranking. Implements types.KeywordSearcher.
//
// ts_rank_cd with normalization 32 maps scores into (0, 1), comparable with
// the vector searcher's cosine similarity during fusion.
type KeywordIndex struct {
	ix *Index
}

func (k *KeywordIndex) Search(ctx context.Context, query string, filters models.Filters, topK int) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		topK = 12
	}

	where, args := filterPredicates(filters, 1)

	stmt := fmt.Sprintf(`
		SELECT chunk_id, content, heading, framework, control_id, section,
			ts_rank_cd(tsv, websearch_to_tsquery('english', $1), 32) AS rank_score
		FROM %s
		WHERE tsv @@ websearch_to_tsquery('english', $1)%s
		ORDER BY rank_score DESC
		LIMIT %d`,
		k.ix.config.TableName, where, topK)

	queryArgs := append([]any{query}, args...)
	rows, err := k.ix.pool.Query(ctx, stmt, queryArgs...)
	if err != nil {
		return nil, &types.ProviderError{Provider: "keyword index", Err: err}
	}
	defer rows.Close()

	var results []models.RetrievalResult
	for rows.Next() {
		var r models.RetrievalResult
		var rank float64
		err := rows.Scan(&r.ChunkID, &r.Content, &r.Heading, &r.Framework,
			&r.ControlID, &r.Section, &rank)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Breakdown.KeywordScore = rank
		r.RelevanceScore = rank
		r.Citation = citationFor(r)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.ProviderError{Provider: "keyword index", Err: err}
	}

	return results, nil
}
