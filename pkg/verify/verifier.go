// Package verify implements the hallucination guard: it decomposes a
// generated answer into claims, checks each claim against the literal
// content of the retrieved source chunks, and decides whether the answer
// may be shown, must be annotated for review, or must be replaced with a
// source-quoted fallback.
package verify

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/complyra/ragsafe/internal/models"
)

// Config holds the verifier thresholds and the high-risk escalation terms.
type Config struct {
	ApproveThreshold float64
	ReviewThreshold  float64
	HighRiskTerms    []string
	QuoteLength      int
}

func (c *Config) applyDefaults() {
	if c.ApproveThreshold == 0 {
		c.ApproveThreshold = 0.9
	}
	if c.ReviewThreshold == 0 {
		c.ReviewThreshold = 0.7
	}
	if len(c.HighRiskTerms) == 0 {
		c.HighRiskTerms = []string{
			"audit", "certification", "penalty", "fine", "breach",
			"violation", "soc 2", "iso 27001", "hipaa", "gdpr", "pci",
		}
	}
	if c.QuoteLength == 0 {
		c.QuoteLength = 240
	}
}

// Verifier checks generated answers against their sources. Stateless and
// safe for concurrent use.
type Verifier struct {
	config Config
	logger *slog.Logger
}

func New(config Config, logger *slog.Logger) *Verifier {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{config: config, logger: logger}
}

// minimum content-token overlap for a claim to count as verified
const verifiedOverlap = 0.5

var (
	numberPattern    = regexp.MustCompile(`\$?\d+(?:[.,]\d+)?%?`)
	citationMarker   = regexp.MustCompile(`\s*\[\d+\]`)
	advicePhrases    = []string{"should", "must", "we recommend", "it is recommended", "best practice", "you need to"}
	sentenceSplitter = regexp.MustCompile(`(?m)[.!?]\s+|[.!?]$|\n+`)
)

// Verify decomposes answer into claims and classifies each one as verified,
// unverified, or flagged against sources. Given no sources it always
// rejects: an answer that cannot be grounded is never shown unreviewed.
// The query is only used for the high-risk escalation check.
func (v *Verifier) Verify(query, answer string, sources []models.RetrievalResult) models.VerificationResult {
	result := models.VerificationResult{}

	claims := splitClaims(answer)
	if len(sources) == 0 || len(claims) == 0 {
		result.UnverifiedClaims = claims
		result.Recommendation = models.RecommendReject
		result.RequiresReview = true
		return result
	}

	sourceTokens := make([]map[string]bool, len(sources))
	var allSourceText strings.Builder
	for i, s := range sources {
		sourceTokens[i] = tokenSet(s.Content + " " + s.Heading)
		allSourceText.WriteString(strings.ToLower(s.Content))
		allSourceText.WriteString(" ")
	}
	combinedSource := allSourceText.String()

	for _, claim := range claims {
		claimTokens := tokenSet(claim)

		if flag, reason := v.flagClaim(claim, claimTokens, sourceTokens, combinedSource); flag {
			result.FlaggedContent = append(result.FlaggedContent, fmt.Sprintf("%s (%s)", claim, reason))
			result.UnverifiedClaims = append(result.UnverifiedClaims, claim)
			continue
		}

		if bestOverlap(claimTokens, sourceTokens) >= verifiedOverlap {
			result.VerifiedClaims = append(result.VerifiedClaims, claim)
		} else {
			result.UnverifiedClaims = append(result.UnverifiedClaims, claim)
		}
	}

	result.Accuracy = float64(len(result.VerifiedClaims)) / float64(len(claims))

	switch {
	case result.Accuracy >= v.config.ApproveThreshold && len(result.FlaggedContent) == 0:
		result.Recommendation = models.RecommendApprove
	case result.Accuracy >= v.config.ReviewThreshold:
		result.Recommendation = models.RecommendReview
	default:
		result.Recommendation = models.RecommendReject
	}

	// Compliance-adjacent questions get a second look by policy, not by
	// confidence alone.
	result.RequiresReview = result.Recommendation != models.RecommendApprove || v.IsHighRisk(query)

	v.logger.Debug("verified answer",
		"claims", len(claims),
		"verified", len(result.VerifiedClaims),
		"flagged", len(result.FlaggedContent),
		"accuracy", result.Accuracy,
		"recommendation", result.Recommendation)

	return result
}

// flagClaim detects claims that introduce outside knowledge: quantitative
// specifics absent from every source, or advice language with no source
// grounding.
func (v *Verifier) flagClaim(claim string, claimTokens map[string]bool, sourceTokens []map[string]bool, combinedSource string) (bool, string) {
	for _, num := range numberPattern.FindAllString(claim, -1) {
		if !strings.Contains(combinedSource, strings.ToLower(num)) {
			return true, "quantitative claim not present in sources"
		}
	}

	lower := strings.ToLower(claim)
	for _, phrase := range advicePhrases {
		if strings.Contains(lower, phrase) && bestOverlap(claimTokens, sourceTokens) < verifiedOverlap {
			return true, "recommendation not grounded in sources"
		}
	}

	return false, ""
}

// IsHighRisk reports whether the query touches a configured high-risk term.
func (v *Verifier) IsHighRisk(query string) bool {
	lower := strings.ToLower(query)
	for _, term := range v.config.HighRiskTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// splitClaims breaks an answer into checkable sentences, dropping fragments
// too short to carry a claim. Citation markers are stripped first so "[1]"
// is never mistaken for a quantitative claim.
func splitClaims(answer string) []string {
	answer = citationMarker.ReplaceAllString(answer, "")
	var claims []string
	for _, part := range sentenceSplitter.Split(answer, -1) {
		part = strings.TrimSpace(part)
		if len(part) < 12 {
			continue
		}
		claims = append(claims, part)
	}
	return claims
}

// bestOverlap returns the highest fraction of claim content tokens found in
// any single source.
func bestOverlap(claimTokens map[string]bool, sourceTokens []map[string]bool) float64 {
	if len(claimTokens) == 0 {
		return 0
	}
	best := 0.0
	for _, src := range sourceTokens {
		matched := 0
		for tok := range claimTokens {
			if src[tok] {
				matched++
			}
		}
		if overlap := float64(matched) / float64(len(claimTokens)); overlap > best {
			best = overlap
		}
	}
	return best
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenSet lowercases, tokenizes, and drops stopwords.
func tokenSet(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if stopwords[tok] {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "this": true, "these": true, "or": true,
}
