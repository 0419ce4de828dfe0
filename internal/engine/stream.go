package engine

import (
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/pdfsource"
)

const (
	defaultRowTol = 2.0
	// Minimum horizontal gap for inferring a cell break when no column
	// boundaries are supplied.
	inferredGapWidth = 10.0
)

// StreamEngine groups positioned text runs into rows by vertical proximity
// and splits rows into cells at the supplied column boundaries, the way
// whitespace-based ("stream") table extractors work. It is the default
// Engine implementation; lattice extraction is not available and degrades
// to stream with a debug log.
//
// StreamEngine is stateless and safe for concurrent use.
type StreamEngine struct {
	log *slog.Logger
}

// NewStreamEngine creates a stream engine.
func NewStreamEngine(logger *slog.Logger) *StreamEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamEngine{log: logger}
}

// ExtractTables extracts at most one frame from the requested area. A frame
// with zero rows means the area held no text; that is data absence, not an
// error.
func (e *StreamEngine) ExtractTables(req Request) ([]*frame.Frame, error) {
	if req.Flavor != "" && req.Flavor != FlavorStream {
		e.log.Debug("unsupported flavor, using stream", "flavor", req.Flavor)
	}

	x1, y1, x2, y2, err := ParseArea(req.TableArea)
	if err != nil {
		return nil, err
	}
	boundaries, err := ParseColumns(req.Columns)
	if err != nil {
		return nil, err
	}
	sort.Float64s(boundaries)

	minX, maxX := math.Min(x1, x2), math.Max(x1, x2)
	minY, maxY := math.Min(y1, y2), math.Max(y1, y2)

	rowTol := req.RowTol
	if rowTol <= 0 {
		rowTol = defaultRowTol
	}

	runs := runsInArea(req.Page, minX, minY, maxX, maxY)
	if len(runs) == 0 {
		return []*frame.Frame{frame.New()}, nil
	}

	if req.SplitText && len(boundaries) > 0 {
		runs = splitAtBoundaries(runs, boundaries)
	}

	rows := groupRows(runs, rowTol)

	if len(boundaries) == 0 {
		boundaries = inferBoundaries(rows)
	}

	f := buildFrame(rows, boundaries, req.StripText)
	return []*frame.Frame{f}, nil
}

func runsInArea(page *pdfsource.PageHandle, minX, minY, maxX, maxY float64) []pdfsource.TextRun {
	if page == nil {
		return nil
	}
	var runs []pdfsource.TextRun
	for _, run := range page.Runs {
		cx := run.X + run.Width/2
		if cx < minX || cx > maxX || run.Y < minY || run.Y > maxY {
			continue
		}
		if strings.TrimSpace(run.Text) == "" {
			continue
		}
		runs = append(runs, run)
	}
	return runs
}

// splitAtBoundaries carves a run that crosses a column boundary into
// per-column pieces, apportioning its text by width.
func splitAtBoundaries(runs []pdfsource.TextRun, boundaries []float64) []pdfsource.TextRun {
	var out []pdfsource.TextRun
	for _, run := range runs {
		crossed := crossingBoundaries(run, boundaries)
		if len(crossed) == 0 || run.Width <= 0 || len(run.Text) < 2 {
			out = append(out, run)
			continue
		}
		start := run.X
		text := run.Text
		for _, b := range crossed {
			frac := (b - start) / run.Width
			cut := int(math.Round(frac * float64(len(run.Text))))
			if cut <= 0 || cut >= len(text) {
				continue
			}
			out = append(out, pdfsource.TextRun{
				Text: text[:cut], X: start, Y: run.Y,
				Width: b - start, Height: run.Height, FontSize: run.FontSize,
			})
			text = text[cut:]
			start = b
		}
		out = append(out, pdfsource.TextRun{
			Text: text, X: start, Y: run.Y,
			Width: run.X + run.Width - start, Height: run.Height, FontSize: run.FontSize,
		})
	}
	return out
}

func crossingBoundaries(run pdfsource.TextRun, boundaries []float64) []float64 {
	var crossed []float64
	for _, b := range boundaries {
		if run.X < b && run.X+run.Width > b {
			crossed = append(crossed, b)
		}
	}
	return crossed
}

type textRow struct {
	y    float64
	runs []pdfsource.TextRun
}

// groupRows buckets runs into rows: a run joins the current row when its Y
// is within rowTol of the row anchor. Rows come out top to bottom.
func groupRows(runs []pdfsource.TextRun, rowTol float64) []textRow {
	sorted := append([]pdfsource.TextRun(nil), runs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows []textRow
	for _, run := range sorted {
		if len(rows) > 0 && math.Abs(rows[len(rows)-1].y-run.Y) <= rowTol {
			rows[len(rows)-1].runs = append(rows[len(rows)-1].runs, run)
			continue
		}
		rows = append(rows, textRow{y: run.Y, runs: []pdfsource.TextRun{run}})
	}
	for i := range rows {
		sort.Slice(rows[i].runs, func(a, b int) bool {
			return rows[i].runs[a].X < rows[i].runs[b].X
		})
	}
	return rows
}

// inferBoundaries derives cell boundaries from horizontal gaps that persist
// across all rows. Used only when the caller supplied no column markers.
func inferBoundaries(rows []textRow) []float64 {
	// Collect candidate gaps from the widest row, then keep each gap only
	// if no run in any row covers it.
	var widest textRow
	for _, row := range rows {
		if len(row.runs) > len(widest.runs) {
			widest = row
		}
	}
	var boundaries []float64
	for i := 1; i < len(widest.runs); i++ {
		prev := widest.runs[i-1]
		gapStart := prev.X + prev.Width
		gapEnd := widest.runs[i].X
		if gapEnd-gapStart < inferredGapWidth {
			continue
		}
		mid := (gapStart + gapEnd) / 2
		covered := false
		for _, row := range rows {
			for _, run := range row.runs {
				if run.X < mid && run.X+run.Width > mid {
					covered = true
					break
				}
			}
			if covered {
				break
			}
		}
		if !covered {
			boundaries = append(boundaries, mid)
		}
	}
	return boundaries
}

// buildFrame assigns every run to the cell whose boundary interval holds
// its center, joining multiple runs per cell with single spaces. Column
// headers are positional indices, matching what a stream extractor can
// infer without a header model.
func buildFrame(rows []textRow, boundaries []float64, stripText string) *frame.Frame {
	cols := len(boundaries) + 1
	names := make([]string, cols)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	f := frame.New(names...)

	for _, row := range rows {
		cells := make([]string, cols)
		for _, run := range row.runs {
			bin := sort.SearchFloat64s(boundaries, run.X+run.Width/2)
			text := stripChars(run.Text, stripText)
			if text == "" {
				continue
			}
			if cells[bin] != "" {
				cells[bin] += " "
			}
			cells[bin] += text
		}
		f.AppendRow(cells...)
	}
	return f
}

func stripChars(s, chars string) string {
	if chars == "" {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}
