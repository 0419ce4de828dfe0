// Package engine defines the table-extraction engine boundary. The rest of
// the pipeline treats an Engine as a black box taking a page handle plus
// string-encoded area and column parameters and returning zero or more
// tabular frames with engine-inferred column headers.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/pdfsource"
)

// Flavors understood by the stream engine.
const (
	FlavorStream  = "stream"
	FlavorLattice = "lattice"
)

// Request carries one extraction call. TableArea is "x1,y1,x2,y2" and
// Columns a comma list of x-coordinates; both in PDF points. RowTol groups
// text runs into rows; SplitText controls whether a run crossing a column
// boundary is carved up at the boundary; StripText lists characters removed
// from every cell.
type Request struct {
	Page      *pdfsource.PageHandle
	TableArea string
	Columns   string
	RowTol    float64
	SplitText bool
	StripText string
	Flavor    string
}

// Engine extracts tabular frames from a page region.
type Engine interface {
	ExtractTables(req Request) ([]*frame.Frame, error)
}

// ParseArea parses a "x1,y1,x2,y2" area string.
func ParseArea(area string) (x1, y1, x2, y2 float64, err error) {
	parts := strings.Split(area, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("table area %q: want 4 comma-separated numbers", area)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("table area %q: %w", area, err)
		}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

// ParseColumns parses a comma list of x-coordinates. Empty string parses to
// nil, meaning the engine infers cell boundaries itself.
func ParseColumns(columns string) ([]float64, error) {
	if strings.TrimSpace(columns) == "" {
		return nil, nil
	}
	parts := strings.Split(columns, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("columns %q: %w", columns, err)
		}
		out = append(out, v)
	}
	return out, nil
}
