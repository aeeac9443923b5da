// Package audit keeps the append-only record of every verified answer.
// Entries are never deleted within the system; the only permitted mutation
// is flipping the human-review flags once a person has looked at an entry.
package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/complyra/ragsafe/internal/models"
)

// Store persists audit entries. Implementations must be append-only:
// MarkReviewed is the single allowed update.
type Store interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	List(ctx context.Context) ([]models.AuditEntry, error)
	MarkReviewed(ctx context.Context, id string, approved bool) error
}

// Log records verified answers against a Store.
type Log struct {
	store            Store
	approveThreshold float64
	logger           *slog.Logger
}

func NewLog(store Store, approveThreshold float64, logger *slog.Logger) *Log {
	if approveThreshold == 0 {
		approveThreshold = 0.8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{store: store, approveThreshold: approveThreshold, logger: logger}
}

// Record appends one entry for a verified answer. Approved is a snapshot of
// score >= threshold taken now; it is not re-evaluated later.
func (l *Log) Record(ctx context.Context, query string, sources []models.RetrievalResult, response string, score float64) (models.AuditEntry, error) {
	controls := make([]string, 0, len(sources))
	for _, s := range sources {
		id := s.ControlID
		if id == "" {
			id = s.ChunkID
		}
		controls = append(controls, id)
	}

	entry := models.AuditEntry{
		ID:                uuid.NewString(),
		Timestamp:         time.Now().UTC(),
		Query:             query,
		ControlsUsed:      controls,
		ResponseGenerated: response,
		VerificationScore: score,
		Approved:          score >= l.approveThreshold,
	}

	if err := l.store.Append(ctx, entry); err != nil {
		return models.AuditEntry{}, fmt.Errorf("failed to append audit entry: %w", err)
	}

	l.logger.Info("recorded audit entry",
		"id", entry.ID, "score", score, "approved", entry.Approved)
	return entry, nil
}

// MarkReviewed flips the human-review flags on one entry.
func (l *Log) MarkReviewed(ctx context.Context, id string, approved bool) error {
	return l.store.MarkReviewed(ctx, id, approved)
}

// Export writes all entries as CSV for external compliance reporting.
func (l *Log) Export(ctx context.Context, w io.Writer) error {
	entries, err := l.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "timestamp", "query", "controls_used",
		"response_generated", "verification_score", "human_reviewed", "approved"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	for _, e := range entries {
		response := e.ResponseGenerated
		if len(response) > exportResponseLimit {
			response = truncateRunes(response, exportResponseLimit) + "..."
		}
		record := []string{
			e.ID,
			e.Timestamp.Format(time.RFC3339),
			e.Query,
			joinControls(e.ControlsUsed),
			response,
			strconv.FormatFloat(e.VerificationScore, 'f', 3, 64),
			strconv.FormatBool(e.HumanReviewed),
			strconv.FormatBool(e.Approved),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write export record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// exportResponseLimit caps exported response bytes; the full text stays in
// the store.
const exportResponseLimit = 500

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

func joinControls(controls []string) string {
	out := ""
	for i, c := range controls {
		if i > 0 {
			out += ";"
		}
		out += c
	}
	return out
}
