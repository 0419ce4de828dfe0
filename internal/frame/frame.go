// Package frame provides the tabular data type shared by the extraction
// pipeline. A Frame is an ordered set of named columns over string cells,
// the shape the table engine emits and the cleaner and exporters consume.
package frame

import (
	"strings"
)

// PageColumn is the reserved column carrying the 1-based source PDF page
// number of each row. It is added by the extractor, never by the engine.
const PageColumn = "pdf_page"

// Frame is a rectangular table of string cells. Rows are dense: every row
// has exactly len(Columns) cells.
type Frame struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// New creates a frame with the given column names and no rows.
func New(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

// AppendRow adds a row, padding or truncating it to the column count.
func (f *Frame) AppendRow(cells ...string) {
	row := make([]string, len(f.Columns))
	copy(row, cells)
	f.Rows = append(f.Rows, row)
}

// RowCount returns the number of rows.
func (f *Frame) RowCount() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// ColumnCount returns the number of columns.
func (f *Frame) ColumnCount() int {
	if f == nil {
		return 0
	}
	return len(f.Columns)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool {
	return f.RowCount() == 0
}

// ColumnIndex returns the index of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column, or nil if absent.
func (f *Frame) Column(name string) []string {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	values := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		values[i] = row[idx]
	}
	return values
}

// Value returns the cell at (row, column name). Missing cells are "".
func (f *Frame) Value(row int, name string) string {
	idx := f.ColumnIndex(name)
	if idx < 0 || row < 0 || row >= len(f.Rows) {
		return ""
	}
	return f.Rows[row][idx]
}

// SetConstantColumn adds (or overwrites) a column holding the same value in
// every row. Used to tag rows with their source page.
func (f *Frame) SetConstantColumn(name, value string) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		f.Columns = append(f.Columns, name)
		for i := range f.Rows {
			f.Rows[i] = append(f.Rows[i], value)
		}
		return
	}
	for i := range f.Rows {
		f.Rows[i][idx] = value
	}
}

// RowText returns the row's cells concatenated with single spaces, used for
// pattern matching over whole lines. The page column is excluded so page
// tags never satisfy a boundary pattern.
func (f *Frame) RowText(row int) string {
	if row < 0 || row >= len(f.Rows) {
		return ""
	}
	pageIdx := f.ColumnIndex(PageColumn)
	var b strings.Builder
	for i, cell := range f.Rows[row] {
		if i == pageIdx {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(cell)
	}
	return b.String()
}

// Slice returns a copy containing rows [start, end] inclusive.
func (f *Frame) Slice(start, end int) *Frame {
	if start < 0 {
		start = 0
	}
	if end >= len(f.Rows) {
		end = len(f.Rows) - 1
	}
	out := New(f.Columns...)
	for i := start; i <= end; i++ {
		out.AppendRow(f.Rows[i]...)
	}
	return out
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := New(f.Columns...)
	for _, row := range f.Rows {
		out.AppendRow(row...)
	}
	return out
}

// StripCells trims leading and trailing whitespace from every cell.
func (f *Frame) StripCells() {
	for _, row := range f.Rows {
		for i, cell := range row {
			row[i] = strings.TrimSpace(cell)
		}
	}
}

// DropNull removes rows and columns whose cells are all blank. The page
// column is kept even when blank-padded rows leave it as the only content.
func (f *Frame) DropNull() {
	kept := f.Rows[:0]
	pageIdx := f.ColumnIndex(PageColumn)
	for _, row := range f.Rows {
		blank := true
		for i, cell := range row {
			if i == pageIdx {
				continue
			}
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if !blank {
			kept = append(kept, row)
		}
	}
	f.Rows = kept

	// Column pass over the surviving rows.
	keepCol := make([]bool, len(f.Columns))
	for i, name := range f.Columns {
		if name == PageColumn {
			keepCol[i] = true
			continue
		}
		for _, row := range f.Rows {
			if strings.TrimSpace(row[i]) != "" {
				keepCol[i] = true
				break
			}
		}
	}
	allKept := true
	for _, k := range keepCol {
		if !k {
			allKept = false
			break
		}
	}
	if allKept {
		return
	}
	var columns []string
	for i, k := range keepCol {
		if k {
			columns = append(columns, f.Columns[i])
		}
	}
	for r, row := range f.Rows {
		var cells []string
		for i, k := range keepCol {
			if k {
				cells = append(cells, row[i])
			}
		}
		f.Rows[r] = cells
	}
	f.Columns = columns
}

// Records returns the frame as one map per row, keyed by column name.
func (f *Frame) Records() []map[string]string {
	records := make([]map[string]string, 0, len(f.Rows))
	for _, row := range f.Rows {
		rec := make(map[string]string, len(f.Columns))
		for i, name := range f.Columns {
			rec[name] = row[i]
		}
		records = append(records, rec)
	}
	return records
}

// Equal reports whether two frames have identical columns and cells.
func (f *Frame) Equal(other *Frame) bool {
	if f.ColumnCount() != other.ColumnCount() || f.RowCount() != other.RowCount() {
		return false
	}
	for i, c := range f.Columns {
		if other.Columns[i] != c {
			return false
		}
	}
	for r, row := range f.Rows {
		for i, cell := range row {
			if other.Rows[r][i] != cell {
				return false
			}
		}
	}
	return true
}
