// Package reconcile compares candidate certificate fields with the
// authoritative ledger copy.
package reconcile

import (
	"strings"

	"certvault/internal/certificate/models"
)

// Result is the outcome of a field-by-field comparison.
type Result struct {
	Consistent bool
	Diffs      []models.FieldDiff
}

// Reconcile compares every attribute and reports all that differ. uid is
// compared after trimming only; names are also compared case-insensitively.
func Reconcile(candidate, authoritative models.CertificateFields) Result {
	var diffs []models.FieldDiff
	for _, attr := range models.FieldAttributes {
		c, a := candidate.Get(attr), authoritative.Get(attr)
		if !equal(attr, c, a) {
			diffs = append(diffs, models.FieldDiff{Attribute: attr, Candidate: c, Authoritative: a})
		}
	}
	return Result{Consistent: len(diffs) == 0, Diffs: diffs}
}

func equal(attr models.Attribute, a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if attr == models.AttrUID {
		return a == b
	}
	return strings.ToLower(a) == strings.ToLower(b)
}
