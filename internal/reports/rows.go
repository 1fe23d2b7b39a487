package reports

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RowKind tags the shape of a report row.
type RowKind int

const (
	// DataRow carries ColData cells.
	DataRow RowKind = iota
	// SectionRow has a Header, nested Rows and an optional Summary.
	SectionRow
	// SummaryRow only carries Summary cells.
	SummaryRow
)

func (k RowKind) String() string {
	switch k {
	case SectionRow:
		return "section"
	case SummaryRow:
		return "summary"
	default:
		return "data"
	}
}

// Cell is a single ColData entry.
type Cell struct {
	Value string `json:"value"`
	ID    ID     `json:"id,omitempty"`
}

// UnmarshalJSON accepts string, number or null values.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value json.RawMessage `json:"value"`
		ID    ID              `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID = raw.ID
	c.Value = rawScalar(raw.Value)
	return nil
}

func rawScalar(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ""
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return s
	}
	return string(data)
}

// Row is one node of a report row tree.
type Row struct {
	Kind    RowKind
	Type    string
	Group   string
	Cells   []Cell
	Header  []Cell
	Rows    []Row
	Summary []Cell
}

// Identifier is the first data cell of the row, trimmed.
func (r Row) Identifier() string {
	if len(r.Cells) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Cells[0].Value)
}

// Label is the row's identifier, or its header/summary caption for sections.
func (r Row) Label() string {
	if id := r.Identifier(); id != "" {
		return id
	}
	if len(r.Header) > 0 {
		return strings.TrimSpace(r.Header[0].Value)
	}
	if len(r.Summary) > 0 {
		return strings.TrimSpace(r.Summary[0].Value)
	}
	return ""
}

// Column describes one report column header.
type Column struct {
	Title string `json:"ColTitle"`
	Type  string `json:"ColType"`
}

// Header holds report level metadata.
type Header struct {
	ReportName  string `json:"ReportName"`
	StartPeriod string `json:"StartPeriod"`
	EndPeriod   string `json:"EndPeriod"`
	Currency    string `json:"Currency"`
	Time        string `json:"Time"`
}

// Report is a decoded upstream report.
type Report struct {
	Header  Header
	Columns []Column
	Rows    []Row
}

type rawCells struct {
	ColData []Cell `json:"ColData"`
}

type rawRows struct {
	Row json.RawMessage `json:"Row"`
}

type rawRow struct {
	Type    string    `json:"type"`
	Group   string    `json:"group"`
	ColData []Cell    `json:"ColData"`
	Header  *rawCells `json:"Header"`
	Rows    *rawRows  `json:"Rows"`
	Summary *rawCells `json:"Summary"`
}

type rawReport struct {
	Header  Header `json:"Header"`
	Columns struct {
		Column []Column `json:"Column"`
	} `json:"Columns"`
	Rows rawRows `json:"Rows"`
}

// DecodeReport parses an upstream report body. Rows that cannot be decoded are
// skipped; only a body that is not a JSON object at all is an error.
func DecodeReport(data []byte) (Report, error) {
	var raw rawReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return Report{}, fmt.Errorf("reports: decode report: %w", err)
	}
	return Report{
		Header:  raw.Header,
		Columns: raw.Columns.Column,
		Rows:    decodeRows(raw.Rows.Row),
	}, nil
}

func decodeRows(data json.RawMessage) []Row {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var items []json.RawMessage
	if data[0] == '{' {
		items = []json.RawMessage{data}
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		var raw rawRow
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		rows = append(rows, raw.toRow())
	}
	return rows
}

func (r rawRow) toRow() Row {
	row := Row{Type: r.Type, Group: r.Group, Cells: r.ColData}
	if r.Summary != nil {
		row.Summary = r.Summary.ColData
	}
	switch {
	case r.Header != nil || r.Rows != nil:
		row.Kind = SectionRow
		if r.Header != nil {
			row.Header = r.Header.ColData
		}
		if r.Rows != nil {
			row.Rows = decodeRows(r.Rows.Row)
		}
	case r.Summary != nil && len(r.ColData) == 0:
		row.Kind = SummaryRow
	default:
		row.Kind = DataRow
	}
	return row
}

// Walk visits rows depth-first in pre-order until fn returns false.
func Walk(rows []Row, fn func(row Row, depth int) bool) {
	walk(rows, 0, fn)
}

func walk(rows []Row, depth int, fn func(Row, int) bool) bool {
	for _, row := range rows {
		if !fn(row, depth) {
			return false
		}
		if len(row.Rows) > 0 && !walk(row.Rows, depth+1, fn) {
			return false
		}
	}
	return true
}
