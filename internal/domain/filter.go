package domain

import (
	"sort"
	"strings"
)

// FilterAll is the explicit "no constraint" value accepted anywhere a
// criteria field may be left open. An empty string means the same.
const FilterAll = "all"

// ListCriteria is a conjunction of independently optional predicates over the
// report collection. The same structure is evaluated in memory by Apply and
// pushed down as a store query; both paths must agree.
type ListCriteria struct {
	Status   string
	Category string
	Priority string
	OwnerID  string
	Search   string
}

// Constrained reports whether a criteria value narrows the result set. An
// empty string and the "all" sentinel both mean no constraint.
func Constrained(value string) bool {
	v := strings.TrimSpace(value)
	return v != "" && v != FilterAll
}

// FoldSearch lowercases ASCII letters only, mirroring the store's LOWER so
// the in-memory and pushed-down search paths agree on every input.
func FoldSearch(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// Matches evaluates the conjunction against a single report. Free text is a
// case-insensitive substring match against title, report number and location,
// OR-ed across the three fields.
func (c ListCriteria) Matches(r Report) bool {
	if Constrained(c.Status) && string(r.Status) != strings.TrimSpace(c.Status) {
		return false
	}
	if Constrained(c.Category) && string(r.Category) != strings.TrimSpace(c.Category) {
		return false
	}
	if Constrained(c.Priority) && string(r.Priority) != strings.TrimSpace(c.Priority) {
		return false
	}
	if c.OwnerID != "" && r.OwnerID != c.OwnerID {
		return false
	}
	if q := FoldSearch(strings.TrimSpace(c.Search)); q != "" {
		if !strings.Contains(FoldSearch(r.Title), q) &&
			!strings.Contains(FoldSearch(r.ReportNumber), q) &&
			!strings.Contains(FoldSearch(r.LocationText), q) {
			return false
		}
	}
	return true
}

// Apply filters a collection in memory and orders the result by descending
// creation time, report number as tiebreak, matching the store ordering.
func (c ListCriteria) Apply(reports []Report) []Report {
	result := make([]Report, 0, len(reports))
	for _, r := range reports {
		if c.Matches(r) {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ReportNumber > result[j].ReportNumber
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
