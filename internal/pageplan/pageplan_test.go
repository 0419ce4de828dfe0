package pageplan

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/invoiceminer/internal/template"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rect(x1, y1, x2, y2 float64) map[string]any {
	return map[string]any{"x1": x1, "y1": y1, "x2": x2, "y2": y2}
}

func TestResolve_SingleTemplate(t *testing.T) {
	tpl := &template.Template{
		Name: "acme-single",
		Type: template.TypeSingle,
		Regions: map[template.Section][]any{
			template.SectionItems: {rect(10, 700, 400, 500)},
		},
	}

	plan, err := Resolve(tpl, 3, discardLogger())
	require.NoError(t, err)
	require.Len(t, plan.Pages, 1)
	assert.Equal(t, 0, plan.Pages[0].PDFPage)
	assert.False(t, plan.Pages[0].Merged)
	assert.Equal(t, tpl.Regions, plan.Pages[0].Regions)
}

func TestResolve_MiddlePageSingleDocumentMergesRoles(t *testing.T) {
	firstItems := rect(10, 700, 400, 400)
	lastSummary := rect(10, 300, 400, 200)
	tpl := &template.Template{
		Name:      "acme-multi",
		Type:      template.TypeMulti,
		PageCount: 3,
		Config:    template.Config{"use_middle_page": true},
		PageRegions: []map[template.Section][]any{
			{template.SectionHeader: {rect(10, 800, 400, 720)}, template.SectionItems: {firstItems}},
			{template.SectionItems: {rect(10, 780, 400, 100)}},
			{template.SectionItems: {rect(10, 780, 400, 350)}, template.SectionSummary: {lastSummary}},
		},
		PageColumnLines: []map[template.Section][]any{
			{template.SectionItems: {100.0, 200.0}},
			{template.SectionItems: {100.0, 200.0}},
			{template.SectionItems: {100.0, 203.0}},
		},
	}

	plan, err := Resolve(tpl, 1, discardLogger())
	require.NoError(t, err)
	require.Len(t, plan.Pages, 1)

	page := plan.Pages[0]
	assert.True(t, page.Merged)
	assert.Equal(t, RoleFirst, page.Role)

	// Items regions of first and last roles concatenate; header and summary
	// each come from their own role.
	assert.Len(t, page.Regions[template.SectionItems], 2)
	assert.Len(t, page.Regions[template.SectionHeader], 1)
	assert.Equal(t, []any{lastSummary}, page.Regions[template.SectionSummary])

	// Markers concatenate without dedup; dedup happens downstream.
	assert.Equal(t, []any{100.0, 200.0, 100.0, 203.0}, page.ColumnLines[template.SectionItems])
}

func TestResolve_MiddlePageRoles(t *testing.T) {
	tpl := &template.Template{
		Type:      template.TypeMulti,
		PageCount: 3,
		Config:    template.Config{"use_middle_page": true},
		PageRegions: []map[template.Section][]any{
			{template.SectionItems: {rect(0, 0, 1, 1)}},
			{template.SectionItems: {rect(0, 0, 2, 2)}},
			{template.SectionItems: {rect(0, 0, 3, 3)}},
		},
	}

	tests := []struct {
		pdfPages  int
		wantRoles []int
	}{
		{2, []int{RoleFirst, RoleLast}},
		{3, []int{RoleFirst, RoleMiddle, RoleLast}},
		{5, []int{RoleFirst, RoleMiddle, RoleMiddle, RoleMiddle, RoleLast}},
	}
	for _, tt := range tests {
		plan, err := Resolve(tpl, tt.pdfPages, discardLogger())
		require.NoError(t, err)
		roles := make([]int, len(plan.Pages))
		for i, p := range plan.Pages {
			roles[i] = p.Role
			assert.Equal(t, i, p.PDFPage)
		}
		assert.Equal(t, tt.wantRoles, roles)
	}
}

func TestResolve_IndexedStopsAtTemplatePageCount(t *testing.T) {
	tpl := &template.Template{
		Type:      template.TypeMulti,
		PageCount: 2,
		PageRegions: []map[template.Section][]any{
			{template.SectionItems: {rect(0, 0, 1, 1)}},
			{template.SectionItems: {rect(0, 0, 2, 2)}},
		},
	}

	// Document has more pages than the template covers: extra pages are
	// not processed.
	plan, err := Resolve(tpl, 4, discardLogger())
	require.NoError(t, err)
	require.Len(t, plan.Pages, 2)
	assert.Equal(t, 0, plan.Pages[0].Role)
	assert.Equal(t, 1, plan.Pages[1].Role)
}

func TestResolve_IndexedSkipsPagesWithoutRole(t *testing.T) {
	tpl := &template.Template{
		Type:      template.TypeMulti,
		PageCount: 3,
		PageRegions: []map[template.Section][]any{
			{template.SectionItems: {rect(0, 0, 1, 1)}},
		},
	}

	plan, err := Resolve(tpl, 3, discardLogger())
	require.NoError(t, err)
	require.Len(t, plan.Pages, 1)
	assert.Equal(t, 0, plan.Pages[0].PDFPage)
}

func TestResolve_ShortDocument(t *testing.T) {
	tpl := &template.Template{
		Type:      template.TypeMulti,
		PageCount: 4,
		PageRegions: []map[template.Section][]any{
			{template.SectionItems: {rect(0, 0, 1, 1)}},
			{template.SectionItems: {rect(0, 0, 2, 2)}},
			{template.SectionItems: {rect(0, 0, 3, 3)}},
			{template.SectionItems: {rect(0, 0, 4, 4)}},
		},
	}

	plan, err := Resolve(tpl, 2, discardLogger())
	require.NoError(t, err)
	require.Len(t, plan.Pages, 2)
}

func TestResolve_NoPages(t *testing.T) {
	tpl := &template.Template{Type: template.TypeSingle}
	_, err := Resolve(tpl, 0, discardLogger())
	assert.Error(t, err)
}
