package audit_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "github.com/complyra/ragsafe/internal/log"
	"github.com/complyra/ragsafe/internal/models"
	"github.com/complyra/ragsafe/pkg/audit"
)

func newTestLog() (*audit.Log, *audit.MemoryStore) {
	store := audit.NewMemoryStore()
	return audit.NewLog(store, 0.8, applog.NewNop()), store
}

func TestLog_RecordSnapshotsApproval(t *testing.T) {
	l, store := newTestLog()
	ctx := context.Background()

	sources := []models.RetrievalResult{
		{ChunkID: "chunk-1", ControlID: "CC6.1"},
		{ChunkID: "chunk-2"}, // no control ID: falls back to the chunk ID
	}

	entry, err := l.Record(ctx, "account management", sources, "the answer", 0.85)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.Equal(t, []string{"CC6.1", "chunk-2"}, entry.ControlsUsed)
	assert.True(t, entry.Approved, "0.85 clears the 0.8 threshold")
	assert.False(t, entry.HumanReviewed)

	low, err := l.Record(ctx, "risky question", sources, "weak answer", 0.5)
	require.NoError(t, err)
	assert.False(t, low.Approved)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLog_RecordThresholdIsInclusive(t *testing.T) {
	l, _ := newTestLog()

	entry, err := l.Record(context.Background(), "q", nil, "a", 0.8)
	require.NoError(t, err)
	assert.True(t, entry.Approved)
}

func TestLog_MarkReviewed(t *testing.T) {
	l, store := newTestLog()
	ctx := context.Background()

	entry, err := l.Record(ctx, "q", nil, "a", 0.5)
	require.NoError(t, err)
	require.False(t, entry.Approved)

	require.NoError(t, l.MarkReviewed(ctx, entry.ID, true))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.True(t, entries[0].HumanReviewed)
	assert.True(t, entries[0].Approved)

	assert.Error(t, l.MarkReviewed(ctx, "no-such-id", true))
}

func TestLog_ExportCSV(t *testing.T) {
	l, _ := newTestLog()
	ctx := context.Background()

	_, err := l.Record(ctx, "first question",
		[]models.RetrievalResult{{ControlID: "AC-2"}, {ControlID: "AC-3"}}, "short answer", 0.9)
	require.NoError(t, err)

	longResponse := strings.Repeat("x", 600)
	_, err = l.Record(ctx, "second question", nil, longResponse, 0.4)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, l.Export(ctx, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two rows")

	assert.Equal(t, []string{"id", "timestamp", "query", "controls_used",
		"response_generated", "verification_score", "human_reviewed", "approved"}, records[0])

	assert.Equal(t, "first question", records[1][2])
	assert.Equal(t, "AC-2;AC-3", records[1][3])
	assert.Equal(t, "0.900", records[1][5])
	assert.Equal(t, "true", records[1][7])

	assert.Len(t, records[2][4], 503, "long responses are truncated")
	assert.Equal(t, "false", records[2][7])
}

func TestLog_ExportTruncationKeepsValidUTF8(t *testing.T) {
	l, _ := newTestLog()
	ctx := context.Background()

	// The two-byte "ü" straddles the truncation boundary.
	response := strings.Repeat("x", 499) + "über die Obergrenze hinaus"
	_, err := l.Record(ctx, "q", nil, response, 0.4)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, l.Export(ctx, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	exported := records[1][4]

	assert.True(t, utf8.ValidString(exported))
	assert.Equal(t, strings.Repeat("x", 499)+"...", exported)
}

func TestMemoryStore_ListReturnsCopy(t *testing.T) {
	store := audit.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, models.AuditEntry{ID: "e1", Query: "q"}))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	entries[0].Query = "mutated"

	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "q", again[0].Query)
}
