package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "github.com/complyra/ragsafe/internal/log"
	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/internal/types"
	"github.com/complyra/ragsafe/pkg/audit"
	"github.com/complyra/ragsafe/pkg/cache"
	"github.com/complyra/ragsafe/pkg/pipeline"
	"github.com/complyra/ragsafe/pkg/retrieval"
	"github.com/complyra/ragsafe/pkg/verify"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeSearcher struct {
	results []models.RetrievalResult
}

func (f *fakeSearcher) Search(ctx context.Context, queryVec []float32, filters models.Filters, topK int) ([]models.RetrievalResult, error) {
	return f.results, nil
}

type fakeKeyword struct{}

func (fakeKeyword) Search(ctx context.Context, query string, filters models.Filters, topK int) ([]models.RetrievalResult, error) {
	return nil, nil
}

type fakeGenerator struct {
	response string
	err      error
	calls    int32
}

func (f *fakeGenerator) Generate(ctx context.Context, contextText, query string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func accountChunks() []models.RetrievalResult {
	return []models.RetrievalResult{
		{
			ChunkID:   "c1",
			Content:   "User accounts are reviewed quarterly and access is revoked within 24 hours of termination.",
			Heading:   "Account Management",
			Framework: "SOC2",
			ControlID: "CC6.1",
			Citation:  "SOC2 CC6.1 — Account Management",
			Breakdown: models.ScoreBreakdown{SemanticScore: 0.9},
		},
		{
			ChunkID:   "c2",
			Content:   "Privileged access requires documented approval from the system owner.",
			Heading:   "Privileged Access",
			Framework: "SOC2",
			ControlID: "CC6.3",
			Citation:  "SOC2 CC6.3 — Privileged Access",
			Breakdown: models.ScoreBreakdown{SemanticScore: 0.85},
		},
	}
}

type fixture struct {
	service  *pipeline.Service
	store    *audit.MemoryStore
	semantic *cache.SemanticCache
	gen      *fakeGenerator
}

func newFixture(embedder types.Embedder, chunks []models.RetrievalResult, gen *fakeGenerator) fixture {
	logger := applog.NewNop()

	engine := retrieval.NewEngine(retrieval.Config{
		TopK:             12,
		RerankLimit:      6,
		SemanticWeight:   0.7,
		KeywordWeight:    0.3,
		MinRelevance:     0.35,
		FallbackResults:  2,
		ConfidenceHigh:   0.8,
		ConfidenceMedium: 0.5,
	}, embedder, &fakeSearcher{results: chunks}, fakeKeyword{}, cache.NewQueryCache(time.Hour), logger)

	verifier := verify.New(verify.Config{}, logger)
	store := audit.NewMemoryStore()
	auditLog := audit.NewLog(store, 0.8, logger)
	semantic := cache.NewSemanticCache(cache.SemanticCacheConfig{
		Capacity:  100,
		Threshold: 0.85,
	})

	service := pipeline.NewService(pipeline.Config{BatchConcurrency: 4},
		engine, gen, verifier, auditLog, semantic, logger)

	return fixture{service: service, store: store, semantic: semantic, gen: gen}
}

func TestAnswer_GroundedQuestionEndToEnd(t *testing.T) {
	gen := &fakeGenerator{response: "User accounts are reviewed quarterly [1]. " +
		"Privileged access requires documented approval from the system owner [2]."}
	fx := newFixture(&fakeEmbedder{vec: []float32{1, 0}}, accountChunks(), gen)

	answer, err := fx.service.Answer(context.Background(),
		"What are account management requirements?", models.Filters{TenantID: "acme"}, true)
	require.NoError(t, err)

	assert.Equal(t, models.ConfidenceHigh, answer.Confidence)
	assert.False(t, answer.RequiresReview)
	assert.Equal(t, gen.response, answer.Response, "approved answers pass through unmodified")
	assert.Equal(t, models.RecommendApprove, answer.Verification.Recommendation)

	require.Len(t, answer.Context.Citations, 2)
	assert.Contains(t, answer.Context.ContextText, "[1]")
	assert.Contains(t, answer.Context.ContextText, "[2]")

	assert.Equal(t, []string{"CC6.1", "CC6.3"}, answer.AuditEntry.ControlsUsed)
	assert.True(t, answer.AuditEntry.Approved)

	entries, err := fx.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Equal(t, 1, fx.semantic.Len(), "approved answer entered the response cache")
}

func TestAnswer_NoMatchesRejects(t *testing.T) {
	gen := &fakeGenerator{response: "Here is what I think the policy might say."}
	fx := newFixture(&fakeEmbedder{vec: []float32{1, 0}}, nil, gen)

	answer, err := fx.service.Answer(context.Background(), "completely unrelated question", models.Filters{}, true)
	require.NoError(t, err, "no matches is a result, not an error")

	assert.Equal(t, models.ConfidenceLow, answer.Confidence)
	assert.True(t, answer.RequiresReview)
	assert.Equal(t, models.RecommendReject, answer.Verification.Recommendation)
	assert.NotEqual(t, gen.response, answer.Response, "unverifiable answer is withheld")
	assert.Equal(t, 0, fx.semantic.Len(), "rejected answers never enter the response cache")
}

func TestAnswer_GeneratorFailureFallsBackToSources(t *testing.T) {
	gen := &fakeGenerator{err: &types.ProviderError{Provider: "generator", Err: errors.New("model offline")}}
	fx := newFixture(&fakeEmbedder{vec: []float32{1, 0}}, accountChunks(), gen)

	answer, err := fx.service.Answer(context.Background(), "account policy", models.Filters{}, true)
	require.NoError(t, err, "provider failure degrades instead of failing the request")

	assert.Equal(t, models.RecommendReject, answer.Verification.Recommendation)
	assert.True(t, answer.RequiresReview)
	assert.Contains(t, answer.Response, "reviewed quarterly", "fallback quotes source material")

	entries, err := fx.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed generations are still audited")
	assert.False(t, entries[0].Approved)
}

func TestAnswer_SemanticCacheHitShortCircuits(t *testing.T) {
	gen := &fakeGenerator{response: "User accounts are reviewed quarterly [1]. " +
		"Privileged access requires documented approval from the system owner [2]."}
	fx := newFixture(&fakeEmbedder{vec: []float32{1, 0}}, accountChunks(), gen)
	ctx := context.Background()

	first, err := fx.service.Answer(ctx, "What are account management requirements?", models.Filters{}, true)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	// The fake embedder maps every query to the same vector, so any
	// paraphrase is a perfect similarity match.
	second, err := fx.service.Answer(ctx, "Tell me the requirements for managing accounts", models.Filters{}, true)
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gen.calls), "cache hit skips generation")
}

func TestAnswer_CacheBypass(t *testing.T) {
	gen := &fakeGenerator{response: "User accounts are reviewed quarterly [1]. " +
		"Privileged access requires documented approval from the system owner [2]."}
	fx := newFixture(&fakeEmbedder{vec: []float32{1, 0}}, accountChunks(), gen)
	ctx := context.Background()

	_, err := fx.service.Answer(ctx, "account management", models.Filters{}, false)
	require.NoError(t, err)
	_, err = fx.service.Answer(ctx, "account management", models.Filters{}, false)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&gen.calls))
	assert.Equal(t, 0, fx.semantic.Len(), "bypassed requests do not populate the cache")
}

func TestAnswer_EmbedderFailureStillAnswers(t *testing.T) {
	gen := &fakeGenerator{response: "No grounded answer available."}
	fx := newFixture(&fakeEmbedder{err: errors.New("provider down")}, accountChunks(), gen)

	answer, err := fx.service.Answer(context.Background(), "account policy", models.Filters{}, true)
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceLow, answer.Confidence)
}

func TestAnswerBatch_PreservesOrder(t *testing.T) {
	gen := &fakeGenerator{response: "User accounts are reviewed quarterly. " +
		"Privileged access requires documented approval from the system owner."}
	fx := newFixture(&fakeEmbedder{vec: []float32{1, 0}}, accountChunks(), gen)

	queries := make([]string, 8)
	for i := range queries {
		queries[i] = fmt.Sprintf("question %d about account reviews", i)
	}

	answers, err := fx.service.AnswerBatch(context.Background(), queries, models.Filters{}, false)
	require.NoError(t, err)
	require.Len(t, answers, len(queries))
	for i, a := range answers {
		assert.Equal(t, queries[i], a.Query)
	}
}

func TestInvalidateTenant_RequiresTenantID(t *testing.T) {
	fx := newFixture(&fakeEmbedder{vec: []float32{1}}, nil, &fakeGenerator{response: "x"})

	_, err := fx.service.InvalidateTenant("")
	assert.Error(t, err)

	removed, err := fx.service.InvalidateTenant("acme")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
