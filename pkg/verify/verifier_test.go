package verify_test

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "github.com/complyra/ragsafe/internal/log"
	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/pkg/verify"
)

func newVerifier() *verify.Verifier {
	return verify.New(verify.Config{}, applog.NewNop())
}

func accessSources() []models.RetrievalResult {
	return []models.RetrievalResult{
		{
			ChunkID:   "c1",
			Content:   "User accounts are reviewed quarterly and access is revoked within 24 hours of termination.",
			Heading:   "Logical Access Controls",
			Framework: "SOC2",
			Citation:  "SOC 2 CC6.1 — Logical Access Controls",
		},
		{
			ChunkID:   "c2",
			Content:   "Privileged access requires documented approval from the system owner.",
			Heading:   "Privileged Access",
			Framework: "SOC2",
			Citation:  "SOC 2 CC6.3 — Privileged Access",
		},
	}
}

func TestVerify_ApprovesGroundedAnswer(t *testing.T) {
	v := newVerifier()

	answer := "User accounts are reviewed quarterly. Access is revoked within 24 hours of termination."
	result := v.Verify("How are user accounts managed?", answer, accessSources())

	assert.Equal(t, models.RecommendApprove, result.Recommendation)
	assert.InDelta(t, 1.0, result.Accuracy, 1e-9)
	assert.Empty(t, result.FlaggedContent)
	assert.False(t, result.RequiresReview)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence())
}

func TestVerify_CitationMarkersAreNotQuantitativeClaims(t *testing.T) {
	v := newVerifier()

	answer := "User accounts are reviewed quarterly [1]. " +
		"Privileged access requires documented approval from the system owner [2]."
	result := v.Verify("account policy", answer, accessSources())

	assert.Empty(t, result.FlaggedContent)
	assert.Equal(t, models.RecommendApprove, result.Recommendation)
}

func TestVerify_FlagsUngroundedNumbers(t *testing.T) {
	v := newVerifier()

	// 30 days appears nowhere in the sources.
	answer := "User accounts are reviewed quarterly. Passwords expire after 30 days."
	result := v.Verify("account policy", answer, accessSources())

	require.NotEmpty(t, result.FlaggedContent)
	assert.Contains(t, result.FlaggedContent[0], "quantitative claim")
	assert.NotEqual(t, models.RecommendApprove, result.Recommendation)
	assert.True(t, result.RequiresReview)
}

func TestVerify_FlagsUngroundedAdvice(t *testing.T) {
	v := newVerifier()

	answer := "User accounts are reviewed quarterly. You should disable telemetry collection entirely."
	result := v.Verify("account policy", answer, accessSources())

	require.NotEmpty(t, result.FlaggedContent)
	assert.Contains(t, result.FlaggedContent[0], "recommendation not grounded")
}

func TestVerify_NoSourcesAlwaysRejects(t *testing.T) {
	v := newVerifier()

	result := v.Verify("anything", "Accounts are reviewed quarterly.", nil)

	assert.Equal(t, models.RecommendReject, result.Recommendation)
	assert.True(t, result.RequiresReview)
	assert.Equal(t, models.ConfidenceLow, result.Confidence())
}

func TestVerify_EmptyAnswerRejects(t *testing.T) {
	v := newVerifier()

	result := v.Verify("anything", "", accessSources())
	assert.Equal(t, models.RecommendReject, result.Recommendation)
}

func TestVerify_MixedAccuracyLandsInReview(t *testing.T) {
	v := verify.New(verify.Config{ApproveThreshold: 0.9, ReviewThreshold: 0.5}, applog.NewNop())

	answer := "User accounts are reviewed quarterly. " +
		"Privileged access requires documented approval from the system owner. " +
		"The moon phase determines deployment windows for compliance teams."
	result := v.Verify("access policy", answer, accessSources())

	assert.Equal(t, models.RecommendReview, result.Recommendation)
	assert.NotEmpty(t, result.UnverifiedClaims)
	assert.NotEmpty(t, result.VerifiedClaims)
	assert.True(t, result.RequiresReview)
}

func TestVerify_HighRiskQueryForcesReview(t *testing.T) {
	v := newVerifier()

	answer := "User accounts are reviewed quarterly. Access is revoked within 24 hours of termination."
	result := v.Verify("What does our SOC 2 audit require for accounts?", answer, accessSources())

	assert.Equal(t, models.RecommendApprove, result.Recommendation)
	assert.True(t, result.RequiresReview, "high-risk terms escalate even approved answers")
}

func TestIsHighRisk(t *testing.T) {
	v := newVerifier()

	assert.True(t, v.IsHighRisk("When is our next SOC 2 audit?"))
	assert.True(t, v.IsHighRisk("what fines apply under GDPR"))
	assert.False(t, v.IsHighRisk("how do I reset my password"))
}

func TestFallback_QuotesOnlySourceMaterial(t *testing.T) {
	v := newVerifier()

	fallback := v.Fallback(accessSources())

	assert.Contains(t, fallback, "could not be verified")
	assert.Contains(t, fallback, "c1")
	assert.Contains(t, fallback, "Logical Access Controls")
	assert.Contains(t, fallback, "reviewed quarterly")
}

func TestFallback_TruncatesLongQuotes(t *testing.T) {
	v := verify.New(verify.Config{QuoteLength: 20}, applog.NewNop())

	sources := []models.RetrievalResult{{
		ChunkID: "c1",
		Content: "This source excerpt is much longer than the configured quote length and must be cut short.",
	}}
	fallback := v.Fallback(sources)

	assert.Contains(t, fallback, "This source excerpt ...")
	assert.NotContains(t, fallback, "cut short")
}

func TestFallback_TruncationKeepsValidUTF8(t *testing.T) {
	// A 3-byte cut lands inside the two-byte "ü" without rune alignment.
	v := verify.New(verify.Config{QuoteLength: 3}, applog.NewNop())

	sources := []models.RetrievalResult{{
		ChunkID: "c1",
		Content: "Prüfbericht über die Zugriffskontrollen des Anbieters.",
	}}
	fallback := v.Fallback(sources)

	assert.True(t, utf8.ValidString(fallback))
	assert.Contains(t, fallback, "Pr...")
	assert.NotContains(t, fallback, "�")
}

func TestFallback_NoSources(t *testing.T) {
	v := newVerifier()

	fallback := v.Fallback(nil)
	assert.Contains(t, fallback, "manual review")
}

func TestAnnotateForReview(t *testing.T) {
	annotated := verify.AnnotateForReview("The answer.", []string{"claim one", "claim two"})
	assert.Contains(t, annotated, "The answer.")
	assert.Contains(t, annotated, "pending manual review")
	assert.Contains(t, annotated, "claim one")
	assert.Contains(t, annotated, "claim two")

	assert.Equal(t, "clean", verify.AnnotateForReview("clean", nil))
}

func TestPrependAlert(t *testing.T) {
	assert.Equal(t, "clean", verify.PrependAlert("clean", nil))

	alerted := verify.PrependAlert("the answer", []string{"flagged claim"})
	assert.Contains(t, alerted, "CONTENT VERIFICATION ALERT")
	assert.Contains(t, alerted, "the answer")
}
