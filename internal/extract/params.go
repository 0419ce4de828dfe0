package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/veridata/invoiceminer/internal/geometry"
	"github.com/veridata/invoiceminer/internal/pageplan"
	"github.com/veridata/invoiceminer/internal/template"
)

// ErrRowTolMissing marks a section whose row tolerance resolves at no
// config level. Fatal for that (page, section); the caller records an
// extraction failure and moves on.
var ErrRowTolMissing = errors.New("row_tol not configured")

// Column markers within this distance of a previously kept marker are
// dropped when merging item regions.
const markerDedupeGap = 5.0

// MarkerAssociation decides which regions a column marker lacking an
// explicit region index applies to. Historical templates are inconsistent
// here, so the choice is an explicit knob rather than a guess.
type MarkerAssociation int

const (
	// AssociateAll applies unindexed markers to every region of the
	// section. The default.
	AssociateAll MarkerAssociation = iota
	// AssociateFirst applies unindexed markers to region 0 only.
	AssociateFirst
)

// RegionPlan is one normalized area with its sorted column boundaries.
type RegionPlan struct {
	Area    geometry.Rect
	Columns []float64
}

// SectionParams holds everything needed to invoke the engine for one
// (page, section): the region list (a single merged entry for multi-region
// items) and the resolved extraction parameters.
type SectionParams struct {
	Section   template.Section
	Regions   []RegionPlan
	RowTol    float64
	SplitText bool
	StripText string
	Flavor    string
}

// BuildSectionParams normalizes the section's regions and markers from the
// planned page and resolves extraction parameters from the template config.
// Returns (nil, nil) when the section has no usable regions on this page.
// Unrecognized region or marker encodings are logged and skipped; a missing
// row_tol is returned as ErrRowTolMissing.
func BuildSectionParams(cfg template.Config, page pageplan.PlannedPage,
	section template.Section, assoc MarkerAssociation, logger *slog.Logger,
) (*SectionParams, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rawRegions := page.Regions[section]
	if len(rawRegions) == 0 {
		return nil, nil
	}

	var rects []geometry.Rect
	for i, raw := range rawRegions {
		rect, err := geometry.NormalizeRegion(raw)
		if err != nil {
			logger.Warn("skipping unrecognized region",
				"section", section, "page", page.PDFPage, "region", i, "error", err)
			continue
		}
		rects = append(rects, rect)
	}
	if len(rects) == 0 {
		return nil, nil
	}

	markersByRegion := collectMarkers(page.ColumnLines[section], len(rects), assoc,
		section, page.PDFPage, logger)

	rowTol, ok := cfg.RowTol(section)
	if !ok {
		return nil, fmt.Errorf("%w: section %s", ErrRowTolMissing, section)
	}

	params := &SectionParams{
		Section:   section,
		RowTol:    rowTol,
		SplitText: cfg.SplitText(section),
		StripText: cfg.StripText(section),
		Flavor:    cfg.Flavor(section),
	}

	if section == template.SectionItems && len(rects) > 1 {
		// Multiple item regions collapse into one bounding area with the
		// union of all markers, deduplicated within markerDedupeGap.
		bound := rects[0]
		for _, r := range rects[1:] {
			bound = bound.Union(r)
		}
		var all []float64
		for _, xs := range markersByRegion {
			all = append(all, xs...)
		}
		params.Regions = []RegionPlan{{
			Area:    bound,
			Columns: geometry.DedupeBoundaries(all, markerDedupeGap),
		}}
		return params, nil
	}

	for i, rect := range rects {
		params.Regions = append(params.Regions, RegionPlan{
			Area:    rect,
			Columns: sortedUnique(markersByRegion[i]),
		})
	}
	return params, nil
}

// collectMarkers normalizes the section's column markers and distributes
// them over the region indices per the association mode.
func collectMarkers(raw []any, regionCount int, assoc MarkerAssociation,
	section template.Section, page int, logger *slog.Logger,
) map[int][]float64 {
	markers := make(map[int][]float64)
	for i, rawMarker := range raw {
		m, err := geometry.NormalizeColumnMarker(rawMarker)
		if err != nil {
			logger.Warn("skipping unrecognized column marker",
				"section", section, "page", page, "marker", i, "error", err)
			continue
		}
		switch {
		case m.HasRegion:
			if m.Region >= 0 && m.Region < regionCount {
				markers[m.Region] = append(markers[m.Region], m.X)
			} else {
				logger.Warn("column marker region index out of range, skipping",
					"section", section, "page", page, "region", m.Region)
			}
		case assoc == AssociateFirst:
			markers[0] = append(markers[0], m.X)
		default:
			for r := 0; r < regionCount; r++ {
				markers[r] = append(markers[r], m.X)
			}
		}
	}
	return markers
}

// ColumnsParam renders the boundary list in the engine's comma form.
func (p RegionPlan) ColumnsParam() string {
	parts := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		parts[i] = strconv.FormatFloat(c, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func sortedUnique(xs []float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	kept := out[:1]
	for _, x := range out[1:] {
		if x != kept[len(kept)-1] {
			kept = append(kept, x)
		}
	}
	return kept
}
