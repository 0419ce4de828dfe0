// Package pageplan computes which PDF pages of a document are processed and
// which template page role applies to each. The plan is resolved once per
// document, before any extraction call, and is the authoritative page→role
// mapping for the rest of the pipeline.
package pageplan

import (
	"fmt"
	"log/slog"

	"github.com/veridata/invoiceminer/internal/template"
)

// Page roles for multi-page templates.
const (
	RoleFirst  = 0
	RoleMiddle = 1
	RoleLast   = 2
)

// PlannedPage binds one 0-based PDF page index to the effective region and
// column maps extraction should use on it.
type PlannedPage struct {
	PDFPage int
	Role    int
	// Merged marks the single-page middle-page case where the first and
	// last roles are combined into one effective map set.
	Merged      bool
	Regions     map[template.Section][]any
	ColumnLines map[template.Section][]any
}

// Plan is the ordered list of pages to process for one document.
type Plan struct {
	Pages []PlannedPage
}

// Resolve computes the page plan for a template against a document with
// pdfPageCount pages. Pages whose role has no template entry are skipped
// with a warning, never failed.
func Resolve(tpl *template.Template, pdfPageCount int, logger *slog.Logger) (Plan, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if pdfPageCount <= 0 {
		return Plan{}, fmt.Errorf("document has no pages")
	}

	if tpl.Type == template.TypeSingle {
		return Plan{Pages: []PlannedPage{{
			PDFPage:     0,
			Role:        0,
			Regions:     tpl.Regions,
			ColumnLines: tpl.ColumnLines,
		}}}, nil
	}

	switch {
	case tpl.Config.UseMiddlePage():
		return resolveMiddlePage(tpl, pdfPageCount), nil
	default:
		// fixed_page_count and the standard strategy share the same
		// index-for-index mapping; the flag only documents intent.
		return resolveIndexed(tpl, pdfPageCount, logger), nil
	}
}

func resolveMiddlePage(tpl *template.Template, pdfPageCount int) Plan {
	if pdfPageCount == 1 {
		return Plan{Pages: []PlannedPage{{
			PDFPage:     0,
			Role:        RoleFirst,
			Merged:      true,
			Regions:     mergeSectionMaps(tpl.RoleRegions(RoleFirst), tpl.RoleRegions(RoleLast)),
			ColumnLines: mergeSectionMaps(tpl.RoleColumnLines(RoleFirst), tpl.RoleColumnLines(RoleLast)),
		}}}
	}

	pages := make([]PlannedPage, 0, pdfPageCount)
	for i := 0; i < pdfPageCount; i++ {
		role := RoleMiddle
		switch i {
		case 0:
			role = RoleFirst
		case pdfPageCount - 1:
			role = RoleLast
		}
		pages = append(pages, PlannedPage{
			PDFPage:     i,
			Role:        role,
			Regions:     tpl.RoleRegions(role),
			ColumnLines: tpl.RoleColumnLines(role),
		})
	}
	return Plan{Pages: pages}
}

func resolveIndexed(tpl *template.Template, pdfPageCount int, logger *slog.Logger) Plan {
	limit := tpl.PageCount
	if pdfPageCount < limit {
		limit = pdfPageCount
	}
	roleCount := tpl.RoleCount()

	var pages []PlannedPage
	for i := 0; i < limit; i++ {
		if i >= roleCount {
			logger.Warn("no template page role for page, skipping",
				"page", i, "roles", roleCount, "template", tpl.Name)
			continue
		}
		pages = append(pages, PlannedPage{
			PDFPage:     i,
			Role:        i,
			Regions:     tpl.RoleRegions(i),
			ColumnLines: tpl.RoleColumnLines(i),
		})
	}
	return Plan{Pages: pages}
}

// mergeSectionMaps concatenates the entries of both maps per section. No
// deduplication: a rect present in both roles is extracted twice, matching
// the merged-role contract.
func mergeSectionMaps(a, b map[template.Section][]any) map[template.Section][]any {
	merged := make(map[template.Section][]any)
	for _, m := range []map[template.Section][]any{a, b} {
		for section, entries := range m {
			merged[section] = append(merged[section], entries...)
		}
	}
	return merged
}
