package reports

import (
	"strings"

	"github.com/shopspring/decimal"
)

const totalIdentifier = "TOTAL"

// TotalRow is the outcome of a total-row search over a report tree.
type TotalRow struct {
	// Cells are the matched row's summary cells (or data cells for a flat
	// TOTAL row). Nil when no row matched.
	Cells []Cell
	Found bool
	// Sum is the fallback used when no row matched: the last numeric cell of
	// every top-level data row, added together.
	Sum float64

	topLevel []Row
}

// FindTotalRow searches rows depth-first (pre-order) for the first row whose
// identifier is TOTAL or whose first summary cell contains "total".
func FindTotalRow(rows []Row) TotalRow {
	var match *Row
	Walk(rows, func(row Row, _ int) bool {
		if isTotalRow(row) {
			r := row
			match = &r
			return false
		}
		return true
	})
	if match != nil {
		cells := match.Summary
		if match.Identifier() == totalIdentifier {
			cells = match.Cells
		}
		return TotalRow{Cells: cells, Found: true}
	}

	sum := decimal.Zero
	for _, row := range rows {
		if row.Kind != DataRow {
			continue
		}
		if cell, ok := lastNumericCell(row.Cells); ok {
			sum = sum.Add(DecimalAmount(cell))
		}
	}
	return TotalRow{Sum: sum.InexactFloat64(), topLevel: rows}
}

func isTotalRow(row Row) bool {
	if row.Identifier() == totalIdentifier {
		return true
	}
	if len(row.Summary) > 0 {
		return strings.Contains(strings.ToLower(row.Summary[0].Value), "total")
	}
	return false
}

func lastNumericCell(cells []Cell) (Cell, bool) {
	for i := len(cells) - 1; i >= 0; i-- {
		if isNumeric(cells[i].Value) {
			return cells[i], true
		}
	}
	return Cell{}, false
}

// Total returns the grand total held in column idx, or the fallback sum when
// no total row exists.
func (t TotalRow) Total(idx int) float64 {
	if !t.Found {
		return t.Sum
	}
	return t.Value(idx)
}

// Value returns the amount in column idx of the total row. Without a total row
// it sums column idx across the top-level data rows.
func (t TotalRow) Value(idx int) float64 {
	if idx < 0 {
		return 0
	}
	if t.Found {
		if idx >= len(t.Cells) {
			return 0
		}
		return ParseAmount(t.Cells[idx])
	}
	sum := decimal.Zero
	for _, row := range t.topLevel {
		if row.Kind != DataRow || idx >= len(row.Cells) {
			continue
		}
		sum = sum.Add(DecimalAmount(row.Cells[idx]))
	}
	return sum.InexactFloat64()
}
