package index

import (
	"fmt"
	"strings"

	"github.com/complyra/ragsafe/internal/models"
)

// filterPredicates renders the shared WHERE clauses for a filter set. Both
// searchers call this so a query can never see chunks its filters exclude.
// Placeholder numbering starts at argOffset+1.
func filterPredicates(f models.Filters, argOffset int) (string, []any) {
	var clauses []string
	var args []any

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", argOffset+len(args))
	}

	if f.TenantID != "" {
		clauses = append(clauses, "tenant_id = "+next(f.TenantID))
	}
	if len(f.Frameworks) > 0 {
		clauses = append(clauses, "framework = ANY("+next(f.Frameworks)+")")
	}
	if len(f.DocumentTypes) > 0 {
		clauses = append(clauses, "section = ANY("+next(f.DocumentTypes)+")")
	}
	if !f.DateRange.Start.IsZero() {
		clauses = append(clauses, "created_at >= "+next(f.DateRange.Start))
	}
	if !f.DateRange.End.IsZero() {
		clauses = append(clauses, "created_at <= "+next(f.DateRange.End))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}
