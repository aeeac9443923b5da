package verify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/complyra/ragsafe/internal/models"
)

const (
	contentAlert = "CONTENT VERIFICATION ALERT: parts of this answer could " +
		"not be traced to the retrieved source material and were flagged for review.\n\n"

	reviewNotice = "\n\nNOTE: the following statements could not be verified " +
		"against the source material and are pending manual review:"

	fallbackHeader = "The generated answer could not be verified against the " +
		"source material and has been withheld. The relevant source excerpts " +
		"are quoted below; please route this question for manual review."
)

// Fallback builds the reject-path response directly from quoted source
// excerpts. It contains nothing that is not in sources.
func (v *Verifier) Fallback(sources []models.RetrievalResult) string {
	if len(sources) == 0 {
		return "No source material is available for this question. Please " +
			"route it for manual review."
	}

	var b strings.Builder
	b.WriteString(fallbackHeader)
	b.WriteString("\n")
	for _, s := range sources {
		quote := strings.TrimSpace(s.Content)
		if len(quote) > v.config.QuoteLength {
			quote = truncateRunes(quote, v.config.QuoteLength) + "..."
		}
		fmt.Fprintf(&b, "\n%s", s.ChunkID)
		if s.Heading != "" {
			fmt.Fprintf(&b, " — %s", s.Heading)
		}
		if s.Framework != "" {
			fmt.Fprintf(&b, " (%s)", s.Framework)
		}
		fmt.Fprintf(&b, ":\n%q\n", quote)
	}
	return b.String()
}

// AnnotateForReview appends the unverified claims and a manual-review notice
// to a review-path answer.
func AnnotateForReview(answer string, unverified []string) string {
	if len(unverified) == 0 {
		return answer
	}
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString(reviewNotice)
	for _, claim := range unverified {
		fmt.Fprintf(&b, "\n  - %s", claim)
	}
	return b.String()
}

// PrependAlert puts a visible content-verification alert ahead of the
// response when anything was flagged, even on an approved answer.
func PrependAlert(response string, flagged []string) string {
	if len(flagged) == 0 {
		return response
	}
	return contentAlert + response
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
