package retrieval

import (
	"fmt"
	"strings"

	"github.com/complyra/ragsafe/internal/models"
)

const emptyContextText = "No relevant compliance material was found for this " +
	"question. Try rephrasing it, or escalate to a compliance consultant for " +
	"a manual answer."

// AssembleConfig holds the confidence cutoffs applied to average relevance.
type AssembleConfig struct {
	ConfidenceHigh   float64
	ConfidenceMedium float64
}

// assemble turns the final chunk list into a citation-annotated context block
// with a confidence tier. Confidence is a deterministic function of the
// average relevance over the surviving set, which may be empty.
func assemble(query string, results []models.RetrievalResult, cfg AssembleConfig) models.ContextTemplate {
	tmpl := models.ContextTemplate{
		Query:           query,
		RetrievedChunks: results,
		TotalChunks:     len(results),
	}

	if len(results) == 0 {
		tmpl.ContextText = emptyContextText
		tmpl.Confidence = models.ConfidenceLow
		return tmpl
	}

	var sum float64
	var b strings.Builder
	b.WriteString("Relevant compliance control excerpts:\n\n")
	for i, r := range results {
		sum += r.RelevanceScore
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(r.Content))
		tmpl.Citations = append(tmpl.Citations, r.Citation)
	}
	b.WriteString("Sources:\n")
	for i, c := range tmpl.Citations {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}

	tmpl.ContextText = b.String()
	tmpl.AvgRelevance = sum / float64(len(results))
	tmpl.Confidence = confidenceFor(tmpl.AvgRelevance, cfg)
	return tmpl
}

func confidenceFor(avgRelevance float64, cfg AssembleConfig) models.Confidence {
	switch {
	case avgRelevance > cfg.ConfidenceHigh:
		return models.ConfidenceHigh
	case avgRelevance > cfg.ConfidenceMedium:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
