package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateRange bounds chunk creation time. Zero values mean unbounded.
type DateRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Filters is the explicit filter set applied to both retrieval sources.
// Every field narrows the candidate chunks before scoring:
//
//   - TenantID restricts results to one tenant's corpus (isolation boundary)
//   - Frameworks restricts to named standards (e.g. "SOC2", "ISO27001")
//   - DocumentTypes restricts by the ingested section tag
//   - DateRange restricts by chunk creation time
type Filters struct {
	TenantID      string    `json:"tenant_id,omitempty"`
	Frameworks    []string  `json:"framework,omitempty"`
	DocumentTypes []string  `json:"document_types,omitempty"`
	DateRange     DateRange `json:"date_range,omitempty"`
}

// Validate reports malformed filter combinations. A bad filter set fails the
// query immediately rather than silently returning the wrong corpus slice.
func (f Filters) Validate() error {
	if !f.DateRange.Start.IsZero() && !f.DateRange.End.IsZero() &&
		f.DateRange.End.Before(f.DateRange.Start) {
		return fmt.Errorf("invalid filters: date_range end %s before start %s",
			f.DateRange.End.Format(time.RFC3339), f.DateRange.Start.Format(time.RFC3339))
	}
	for _, fw := range f.Frameworks {
		if strings.TrimSpace(fw) == "" {
			return fmt.Errorf("invalid filters: empty framework name")
		}
	}
	for _, dt := range f.DocumentTypes {
		if strings.TrimSpace(dt) == "" {
			return fmt.Errorf("invalid filters: empty document type")
		}
	}
	return nil
}

// Canonical serializes the filter set with sorted keys and values so that
// equivalent filters always produce the same cache key material.
func (f Filters) Canonical() string {
	frameworks := append([]string(nil), f.Frameworks...)
	sort.Strings(frameworks)
	types := append([]string(nil), f.DocumentTypes...)
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("tenant=")
	b.WriteString(f.TenantID)
	b.WriteString(";frameworks=")
	b.WriteString(strings.Join(frameworks, ","))
	b.WriteString(";types=")
	b.WriteString(strings.Join(types, ","))
	b.WriteString(";start=")
	if !f.DateRange.Start.IsZero() {
		b.WriteString(f.DateRange.Start.UTC().Format(time.RFC3339))
	}
	b.WriteString(";end=")
	if !f.DateRange.End.IsZero() {
		b.WriteString(f.DateRange.End.UTC().Format(time.RFC3339))
	}
	return b.String()
}
