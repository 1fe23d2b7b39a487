package reports

import (
	"strings"

	"golang.org/x/text/cases"
)

// ResolveColumn returns the index of the first column whose title contains
// fragment, ignoring case and spacing ("1 - 30" matches "1-30"). Columns with
// an empty title are matched on their type. Returns -1 when nothing matches.
func ResolveColumn(cols []Column, fragment string) int {
	fold := cases.Fold()
	want := normalizeTitle(fold.String(fragment))
	if want == "" {
		return -1
	}
	for i, col := range cols {
		title := col.Title
		if strings.TrimSpace(title) == "" {
			title = col.Type
		}
		if strings.Contains(normalizeTitle(fold.String(title)), want) {
			return i
		}
	}
	return -1
}

// TotalColumn resolves the "total" column, defaulting to the last column.
func TotalColumn(cols []Column) int {
	if idx := ResolveColumn(cols, "total"); idx >= 0 {
		return idx
	}
	return len(cols) - 1
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), "")
}
