package reports

import "strings"

// CountReviewRows groups the data rows of a "for review" transaction report by
// account name. The name comes from the report's account column, or from the
// enclosing section header when the report has no such column.
func CountReviewRows(r Report) map[string]int {
	counts := make(map[string]int)
	idx := ResolveColumn(r.Columns, "account")
	countRows(r.Rows, idx, "", counts)
	return counts
}

func countRows(rows []Row, idx int, section string, counts map[string]int) {
	for _, row := range rows {
		switch row.Kind {
		case SectionRow:
			name := section
			if len(row.Header) > 0 {
				name = strings.TrimSpace(row.Header[0].Value)
			}
			countRows(row.Rows, idx, name, counts)
		case DataRow:
			if isTotalRow(row) {
				continue
			}
			name := section
			if idx >= 0 && idx < len(row.Cells) {
				if v := strings.TrimSpace(row.Cells[idx].Value); v != "" {
					name = v
				}
			}
			if name == "" {
				continue
			}
			counts[name]++
		}
	}
}
