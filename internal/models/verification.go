package models

import "time"

// Recommendation is the verifier's disposition for a generated answer.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReview  Recommendation = "review"
	RecommendReject  Recommendation = "reject"
)

// VerificationResult scores a generated answer against its source chunks.
// Produced fresh per answer and never mutated after creation.
type VerificationResult struct {
	Accuracy         float64        `json:"accuracy"`
	VerifiedClaims   []string       `json:"verified_claims"`
	UnverifiedClaims []string       `json:"unverified_claims"`
	FlaggedContent   []string       `json:"flagged_content"`
	Recommendation   Recommendation `json:"recommendation"`
	RequiresReview   bool           `json:"requires_review"`
}

// Confidence maps the verifier disposition to the caller-facing tier.
func (v VerificationResult) Confidence() Confidence {
	switch v.Recommendation {
	case RecommendApprove:
		return ConfidenceHigh
	case RecommendReview:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// AuditEntry records one verified answer. Append-only: nothing is mutated
// after creation except HumanReviewed/Approved via an explicit review.
type AuditEntry struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Query             string    `json:"query"`
	ControlsUsed      []string  `json:"controls_used"`
	ResponseGenerated string    `json:"response_generated"`
	VerificationScore float64   `json:"verification_score"`
	HumanReviewed     bool      `json:"human_reviewed"`
	Approved          bool      `json:"approved"`
}
