// Package pipeline composes retrieval, generation, verification, auditing,
// and both caches into the full question-answering flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/internal/types"
	"github.com/complyra/ragsafe/pkg/audit"
	"github.com/complyra/ragsafe/pkg/cache"
	"github.com/complyra/ragsafe/pkg/retrieval"
	"github.com/complyra/ragsafe/pkg/verify"
)

// Config bounds the batch operations. Concurrency stays single-digit so
// batches never overwhelm the embedding and model backends.
type Config struct {
	BatchConcurrency int
}

// Answer is the final outcome for one query.
type Answer struct {
	Query          string                    `json:"query"`
	Response       string                    `json:"response"`
	Confidence     models.Confidence         `json:"confidence"`
	RequiresReview bool                      `json:"requiresReview"`
	Verification   models.VerificationResult `json:"verification"`
	Context        models.ContextTemplate    `json:"context"`
	AuditEntry     models.AuditEntry         `json:"auditEntry"`
	FromCache      bool                      `json:"fromCache"`
}

// Service is the process-wide pipeline handle. Construct once at startup and
// pass to request handlers; it holds no per-request state.
type Service struct {
	config    Config
	engine    *retrieval.Engine
	generator types.Generator
	verifier  *verify.Verifier
	auditLog  *audit.Log
	semantic  *cache.SemanticCache
	logger    *slog.Logger
}

func NewService(config Config, engine *retrieval.Engine, generator types.Generator,
	verifier *verify.Verifier, auditLog *audit.Log, semantic *cache.SemanticCache,
	logger *slog.Logger) *Service {
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:    config,
		engine:    engine,
		generator: generator,
		verifier:  verifier,
		auditLog:  auditLog,
		semantic:  semantic,
		logger:    logger,
	}
}

// Retrieve runs hybrid retrieval only, without generation or verification.
func (s *Service) Retrieve(ctx context.Context, query string, filters models.Filters, useCache bool) (models.ContextTemplate, error) {
	return s.engine.Retrieve(ctx, query, filters, useCache)
}

// InvalidateTenant drops a tenant's cached retrievals after a corpus change.
func (s *Service) InvalidateTenant(tenantID string) (int, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("invalid filters: tenant_id is required for invalidation")
	}
	return s.engine.InvalidateTenant(tenantID), nil
}

// Answer runs the full flow: semantic cache shortcut, retrieval, generation,
// verification, audit, and cache stores.
func (s *Service) Answer(ctx context.Context, query string, filters models.Filters, useCache bool) (Answer, error) {
	if err := filters.Validate(); err != nil {
		return Answer{}, err
	}

	// The query vector serves both the semantic cache and vector search; an
	// embed failure only disables those two, never the whole query.
	var queryVec []float32
	if vec, err := s.engine.EmbedQuery(ctx, query); err == nil {
		queryVec = vec
	} else {
		s.logger.Warn("query embedding failed", "error", err)
	}

	if useCache && s.semantic != nil && queryVec != nil {
		if entry, similarity, ok := s.semantic.FindSimilar(queryVec); ok {
			s.logger.Debug("semantic cache hit",
				"cached_query", entry.QueryText, "similarity", similarity)
			return Answer{
				Query:          query,
				Response:       entry.Response,
				Confidence:     models.ConfidenceHigh,
				RequiresReview: s.verifier.IsHighRisk(query),
				FromCache:      true,
			}, nil
		}
	}

	tmpl, err := s.engine.RetrieveWithEmbedding(ctx, query, queryVec, filters, useCache)
	if err != nil {
		return Answer{}, err
	}

	raw, genErr := s.generator.Generate(ctx, tmpl.ContextText, query)

	var verification models.VerificationResult
	if genErr != nil {
		// A generation failure leaves nothing to verify; take the safe
		// reject path instead of surfacing the provider error.
		s.logger.Warn("answer generation failed, using source fallback", "error", genErr)
		verification = models.VerificationResult{
			Recommendation: models.RecommendReject,
			RequiresReview: true,
		}
	} else {
		verification = s.verifier.Verify(query, raw, tmpl.RetrievedChunks)
	}

	response := s.shapeResponse(raw, verification, tmpl.RetrievedChunks)

	entry, err := s.auditLog.Record(ctx, query, tmpl.RetrievedChunks, response, verification.Accuracy)
	if err != nil {
		return Answer{}, err
	}

	if useCache && s.semantic != nil && queryVec != nil &&
		verification.Recommendation == models.RecommendApprove {
		s.semantic.Store(query, queryVec, response, verification.Accuracy)
	}

	return Answer{
		Query:          query,
		Response:       response,
		Confidence:     verification.Confidence(),
		RequiresReview: verification.RequiresReview,
		Verification:   verification,
		Context:        tmpl,
		AuditEntry:     entry,
	}, nil
}

// shapeResponse applies the verifier's disposition to the raw answer.
func (s *Service) shapeResponse(raw string, verification models.VerificationResult, sources []models.RetrievalResult) string {
	var response string
	switch verification.Recommendation {
	case models.RecommendApprove:
		response = raw
	case models.RecommendReview:
		response = verify.AnnotateForReview(raw, verification.UnverifiedClaims)
	default:
		response = s.verifier.Fallback(sources)
	}
	return verify.PrependAlert(response, verification.FlaggedContent)
}

// AnswerBatch answers queries with bounded parallelism. Results keep input
// order; the first failure cancels the remainder.
func (s *Service) AnswerBatch(ctx context.Context, queries []string, filters models.Filters, useCache bool) ([]Answer, error) {
	answers := make([]Answer, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.BatchConcurrency)

	for i, q := range queries {
		g.Go(func() error {
			ans, err := s.Answer(ctx, q, filters, useCache)
			if err != nil {
				return fmt.Errorf("query %q: %w", q, err)
			}
			answers[i] = ans
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

// Warm pre-populates the caches by answering queries ahead of time. Provider
// errors on individual queries are logged and skipped; warming is best
// effort. onDone, when non-nil, is called after each query for progress
// reporting.
func (s *Service) Warm(ctx context.Context, queries []string, filters models.Filters, onDone func(query string)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.BatchConcurrency)

	for _, q := range queries {
		g.Go(func() error {
			if _, err := s.Answer(ctx, q, filters, true); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				s.logger.Warn("cache warm query failed", "query", q, "error", err)
			}
			if onDone != nil {
				onDone(q)
			}
			return nil
		})
	}

	return g.Wait()
}
