package extract

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/veridata/invoiceminer/internal/engine"
	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/pageplan"
	"github.com/veridata/invoiceminer/internal/pdfsource"
	"github.com/veridata/invoiceminer/internal/template"
)

// Extractor runs the template-driven extraction pipeline for single
// documents: page plan, per-section parameter assembly, engine invocation,
// cleaning and status aggregation.
//
// An Extractor is safe for concurrent use when its Source and Engine are.
type Extractor struct {
	source pdfsource.Source
	engine engine.Engine
	assoc  MarkerAssociation
	log    *slog.Logger
}

// NewExtractor creates an extractor over the given PDF source and table
// engine.
func NewExtractor(source pdfsource.Source, eng engine.Engine,
	assoc MarkerAssociation, logger *slog.Logger,
) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{source: source, engine: eng, assoc: assoc, log: logger}
}

// ExtractDocument processes one PDF against a template. Errors below the
// document level degrade per the error taxonomy: unreadable documents come
// back fully failed with page count 0, everything else is contained at the
// (page, section) or (region, section) level.
func (e *Extractor) ExtractDocument(tpl *template.Template, path string) *DocumentResult {
	result := newDocumentResult(path, filepath.Base(path), tpl)

	pageCount, err := e.source.PageCount(path)
	if err != nil {
		e.log.Error("document unreadable", "file", result.Filename, "error", err)
		result.Error = err.Error()
		result.PageCount = 0
		return result
	}
	result.PageCount = pageCount

	plan, err := pageplan.Resolve(tpl, pageCount, e.log)
	if err != nil {
		e.log.Error("page plan failed", "file", result.Filename, "error", err)
		result.Error = err.Error()
		return result
	}

	for _, page := range plan.Pages {
		e.processPage(tpl, page, path, result)
	}

	result.finalize()
	return result
}

func (e *Extractor) processPage(tpl *template.Template, page pageplan.PlannedPage,
	path string, result *DocumentResult,
) {
	var handle *pdfsource.PageHandle
	handleLoaded := false

	for _, section := range template.Sections() {
		params, err := BuildSectionParams(tpl.Config, page, section, e.assoc, e.log)
		if err != nil {
			// Configuration errors are fatal for this (page, section) and
			// recorded as an extraction failure, not a skip.
			if errors.Is(err, ErrRowTolMissing) {
				e.log.Error("extraction failed: missing row_tol",
					"file", result.Filename, "page", page.PDFPage, "section", section)
			} else {
				e.log.Error("extraction parameter build failed",
					"file", result.Filename, "page", page.PDFPage, "section", section, "error", err)
			}
			sec := result.Section(section)
			sec.Status = mergeStatus(sec.Status, StatusFailed)
			if sec.Reason == "" {
				sec.Reason = err.Error()
			}
			continue
		}
		if params == nil {
			continue
		}

		if !handleLoaded {
			handle, err = e.source.Page(path, page.PDFPage)
			handleLoaded = true
			if err != nil {
				e.log.Error("page load failed", "file", result.Filename,
					"page", page.PDFPage, "error", err)
			}
		}
		if handle == nil {
			sec := result.Section(section)
			sec.Status = mergeStatus(sec.Status, StatusFailed)
			if sec.Reason == "" {
				sec.Reason = "page unreadable"
			}
			continue
		}

		patterns := tpl.Config.PatternsFor(section, page.Role)
		e.processSection(params, patterns, handle, page, result)
	}
}

func (e *Extractor) processSection(params *SectionParams, patterns template.Patterns,
	handle *pdfsource.PageHandle, page pageplan.PlannedPage, result *DocumentResult,
) {
	sec := result.Section(params.Section)

	for _, region := range params.Regions {
		frames, err := e.engine.ExtractTables(engine.Request{
			Page:      handle,
			TableArea: region.Area.Area(),
			Columns:   region.ColumnsParam(),
			RowTol:    params.RowTol,
			SplitText: params.SplitText,
			StripText: params.StripText,
			Flavor:    params.Flavor,
		})
		if err != nil {
			// Engine failures are contained per (region, section).
			e.log.Error("table engine failed", "file", result.Filename,
				"page", page.PDFPage, "section", params.Section, "error", err)
			sec.Status = mergeStatus(sec.Status, StatusFailed)
			continue
		}

		for _, raw := range frames {
			raw.DropNull()
			if raw.Empty() {
				// No data in the region is not an error.
				continue
			}
			raw.SetConstantColumn(frame.PageColumn, strconv.Itoa(handle.Number))

			cleaned := Clean(raw, patterns, e.log)
			if cleaned.Status == StatusFailed {
				e.log.Warn("section cleaning failed", "file", result.Filename,
					"page", page.PDFPage, "section", params.Section, "reason", cleaned.Reason)
			}
			if !cleaned.Frame.Empty() {
				sec.Frames = append(sec.Frames, cleaned.Frame)
			}
			sec.Status = mergeStatus(sec.Status, cleaned.Status)
			if cleaned.Reason != "" && sec.Reason == "" {
				sec.Reason = cleaned.Reason
			}
		}
	}
}
