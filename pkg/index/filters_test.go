package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyra/ragsafe/internal/models"
)

func TestFilterPredicates_Empty(t *testing.T) {
	clause, args := filterPredicates(models.Filters{}, 2)
	assert.Empty(t, clause)
	assert.Empty(t, args)
}

func TestFilterPredicates_AllFields(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	f := models.Filters{
		TenantID:      "acme",
		Frameworks:    []string{"SOC2", "ISO27001"},
		DocumentTypes: []string{"policy"},
		DateRange:     models.DateRange{Start: start, End: end},
	}

	clause, args := filterPredicates(f, 2)

	assert.Equal(t, " AND tenant_id = $3 AND framework = ANY($4) AND section = ANY($5)"+
		" AND created_at >= $6 AND created_at <= $7", clause)
	require.Len(t, args, 5)
	assert.Equal(t, "acme", args[0])
	assert.Equal(t, []string{"SOC2", "ISO27001"}, args[1])
	assert.Equal(t, start, args[3])
	assert.Equal(t, end, args[4])
}

func TestFilterPredicates_PlaceholderOffset(t *testing.T) {
	clause, args := filterPredicates(models.Filters{TenantID: "acme"}, 0)
	assert.Equal(t, " AND tenant_id = $1", clause)
	assert.Len(t, args, 1)
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "clean text", sanitizeUTF8("clean text"))

	dirty := "bad \xff byte"
	cleaned := sanitizeUTF8(dirty)
	assert.NotContains(t, cleaned, "\xff")
	assert.Contains(t, cleaned, "bad")
	assert.Contains(t, cleaned, "byte")
}
