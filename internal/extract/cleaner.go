package extract

import (
	"log/slog"
	"regexp"

	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/template"
)

// Row-retention thresholds for the tiered cleaning status.
const (
	retentionSuccessRatio = 0.5
	smallFrameRows        = 10
	minSurvivorCount      = 5
)

// CleanResult is the outcome of cleaning one raw frame.
type CleanResult struct {
	Frame  *frame.Frame
	Status Status
	Reason string
}

// Clean applies the start/end boundary patterns and the skip filter to a
// raw extracted frame. Patterns match case-insensitively against each row's
// concatenated text. A malformed pattern degrades that stage to a no-op
// rather than aborting the clean.
func Clean(f *frame.Frame, patterns template.Patterns, logger *slog.Logger) CleanResult {
	if logger == nil {
		logger = slog.Default()
	}

	original := f.RowCount()
	if original == 0 {
		return CleanResult{Frame: f.Clone(), Status: StatusFailed, Reason: "empty frame"}
	}

	startRe := compilePattern(patterns.Start, "start", logger)
	endRe := compilePattern(patterns.End, "end", logger)
	skipRe := compilePattern(patterns.Skip, "skip", logger)

	startIdx := 0
	if startRe != nil {
		startIdx = -1
		for i := 0; i < original; i++ {
			if startRe.MatchString(f.RowText(i)) {
				startIdx = i
				break
			}
		}
		if startIdx < 0 {
			return CleanResult{
				Frame:  frame.New(f.Columns...),
				Status: StatusFailed,
				Reason: "start pattern not found",
			}
		}
	}

	endIdx := original - 1
	if endRe != nil {
		found := -1
		for i := startIdx; i < original; i++ {
			if endRe.MatchString(f.RowText(i)) {
				found = i
				break
			}
		}
		// A missing end pattern is not a failure: everything after the
		// start row is kept.
		if found >= 0 {
			endIdx = found
		}
	}

	cleaned := f.Slice(startIdx, endIdx)

	if skipRe != nil {
		kept := frame.New(cleaned.Columns...)
		for i := 0; i < cleaned.RowCount(); i++ {
			if skipRe.MatchString(cleaned.RowText(i)) {
				continue
			}
			kept.AppendRow(cleaned.Rows[i]...)
		}
		if kept.Empty() {
			return CleanResult{Frame: kept, Status: StatusFailed, Reason: "all rows skipped"}
		}
		cleaned = kept
	}

	cleaned.DropNull()
	cleaned.StripCells()

	survivors := cleaned.RowCount()
	if survivors == 0 {
		return CleanResult{Frame: cleaned, Status: StatusFailed, Reason: "no rows after cleaning"}
	}

	if original <= smallFrameRows {
		return CleanResult{Frame: cleaned, Status: StatusSuccess}
	}
	ratio := float64(survivors) / float64(original)
	if ratio < retentionSuccessRatio || survivors < minSurvivorCount {
		return CleanResult{
			Frame:  cleaned,
			Status: StatusPartial,
			Reason: "low row retention",
		}
	}
	return CleanResult{Frame: cleaned, Status: StatusSuccess}
}

// compilePattern compiles a case-insensitive pattern, returning nil for
// absent or malformed patterns.
func compilePattern(pattern, stage string, logger *slog.Logger) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		logger.Warn("malformed pattern, stage skipped",
			"stage", stage, "pattern", pattern, "error", err)
		return nil
	}
	return re
}
