package extract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/invoiceminer/internal/engine"
	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/pdfsource"
	"github.com/veridata/invoiceminer/internal/template"
)

// fakeSource serves synthetic page handles keyed by path.
type fakeSource struct {
	pages map[string][]*pdfsource.PageHandle
	err   error
}

func (s *fakeSource) PageCount(path string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	pages, ok := s.pages[path]
	if !ok {
		return 0, &pdfsource.SourceError{Op: "open", Path: path, Err: pdfsource.ErrUnreadable}
	}
	return len(pages), nil
}

func (s *fakeSource) Page(path string, index int) (*pdfsource.PageHandle, error) {
	pages := s.pages[path]
	if index < 0 || index >= len(pages) {
		return nil, &pdfsource.SourceError{Op: "page", Path: path, Err: errors.New("out of range")}
	}
	return pages[index], nil
}

// fakeEngine returns a canned frame per (page number, table area), falling
// back to an empty frame. Areas it was called with are recorded.
type fakeEngine struct {
	frames map[string]*frame.Frame
	calls  []engine.Request
	err    error
}

func engineKey(page int, area string) string {
	return fmt.Sprintf("p%d:%s", page, area)
}

func (e *fakeEngine) ExtractTables(req engine.Request) ([]*frame.Frame, error) {
	e.calls = append(e.calls, req)
	if e.err != nil {
		return nil, e.err
	}
	if f, ok := e.frames[engineKey(req.Page.Number, req.TableArea)]; ok {
		return []*frame.Frame{f.Clone()}, nil
	}
	return []*frame.Frame{frame.New()}, nil
}

func itemRows(values ...string) *frame.Frame {
	f := frame.New("0", "1")
	for _, v := range values {
		f.AppendRow(v, "x")
	}
	return f
}

func singleTemplate() *template.Template {
	return &template.Template{
		ID:        1,
		Name:      "acme",
		Type:      template.TypeSingle,
		PageCount: 1,
		Regions: map[template.Section][]any{
			template.SectionHeader: {rect(0, 800, 400, 700)},
			template.SectionItems:  {rect(0, 700, 400, 300)},
		},
		Config: itemsConfig(),
	}
}

func TestExtractDocument_Success(t *testing.T) {
	tpl := singleTemplate()
	source := &fakeSource{pages: map[string][]*pdfsource.PageHandle{
		"a.pdf": {{Path: "a.pdf", Number: 1}},
	}}
	eng := &fakeEngine{frames: map[string]*frame.Frame{
		engineKey(1, "0,800,400,700"): itemRows("Invoice 42"),
		engineKey(1, "0,700,400,300"): itemRows("Widget", "Gadget"),
	}}

	ex := NewExtractor(source, eng, AssociateAll, quiet())
	res := ex.ExtractDocument(tpl, "a.pdf")

	assert.Equal(t, StatusSuccess, res.Overall)
	assert.Equal(t, 1, res.PageCount)
	assert.Equal(t, "acme", res.TemplateName)
	assert.Equal(t, StatusSuccess, res.Section(template.SectionItems).Status)
	assert.Equal(t, StatusNotProcessed, res.Section(template.SectionSummary).Status)

	items := res.Section(template.SectionItems)
	require.Len(t, items.Frames, 1)
	assert.Equal(t, 2, items.Frames[0].RowCount())
	// Every row carries its source page.
	assert.Equal(t, "1", items.Frames[0].Value(0, frame.PageColumn))
}

func TestExtractDocument_UnreadableFile(t *testing.T) {
	ex := NewExtractor(&fakeSource{pages: map[string][]*pdfsource.PageHandle{}},
		&fakeEngine{}, AssociateAll, quiet())
	res := ex.ExtractDocument(singleTemplate(), "missing.pdf")

	assert.Equal(t, StatusFailed, res.Overall)
	assert.Equal(t, 0, res.PageCount)
	assert.NotEmpty(t, res.Error)
}

func TestExtractDocument_MissingRowTolFailsSection(t *testing.T) {
	tpl := singleTemplate()
	tpl.Config = template.Config{
		"extraction_params": map[string]any{
			"header": map[string]any{"row_tol": 3.0},
		},
	}
	source := &fakeSource{pages: map[string][]*pdfsource.PageHandle{
		"a.pdf": {{Path: "a.pdf", Number: 1}},
	}}
	eng := &fakeEngine{frames: map[string]*frame.Frame{
		engineKey(1, "0,800,400,700"): itemRows("Invoice 42"),
	}}

	res := NewExtractor(source, eng, AssociateAll, quiet()).ExtractDocument(tpl, "a.pdf")

	// Items has regions but no row_tol at any level: that section fails
	// while the header still extracts, leaving the document partial.
	assert.Equal(t, StatusFailed, res.Section(template.SectionItems).Status)
	assert.Contains(t, res.Section(template.SectionItems).Reason, "row_tol")
	assert.Equal(t, StatusSuccess, res.Section(template.SectionHeader).Status)
	assert.Equal(t, StatusPartial, res.Overall)
}

func TestExtractDocument_EngineFailureIsContained(t *testing.T) {
	source := &fakeSource{pages: map[string][]*pdfsource.PageHandle{
		"a.pdf": {{Path: "a.pdf", Number: 1}},
	}}
	eng := &fakeEngine{err: errors.New("engine exploded")}

	res := NewExtractor(source, eng, AssociateAll, quiet()).ExtractDocument(singleTemplate(), "a.pdf")
	assert.Equal(t, StatusFailed, res.Overall)
	assert.Equal(t, StatusFailed, res.Section(template.SectionItems).Status)
	assert.Empty(t, res.Error) // contained below document level
}

func TestExtractDocument_EmptyRegionIsNotAnError(t *testing.T) {
	source := &fakeSource{pages: map[string][]*pdfsource.PageHandle{
		"a.pdf": {{Path: "a.pdf", Number: 1}},
	}}
	eng := &fakeEngine{frames: map[string]*frame.Frame{
		engineKey(1, "0,700,400,300"): itemRows("Widget"),
	}}

	res := NewExtractor(source, eng, AssociateAll, quiet()).ExtractDocument(singleTemplate(), "a.pdf")

	// Header region held no text: the section stays not_processed rather
	// than failing, and items still carries the document.
	assert.Equal(t, StatusNotProcessed, res.Section(template.SectionHeader).Status)
	assert.Equal(t, StatusSuccess, res.Overall)
}

func TestExtractDocument_MultiPageMergesSectionStatus(t *testing.T) {
	tpl := &template.Template{
		Name:      "multi",
		Type:      template.TypeMulti,
		PageCount: 2,
		PageRegions: []map[template.Section][]any{
			{template.SectionItems: {rect(0, 700, 400, 300)}},
			{template.SectionItems: {rect(0, 780, 400, 300)}},
		},
		Config: itemsConfig(),
	}
	source := &fakeSource{pages: map[string][]*pdfsource.PageHandle{
		"b.pdf": {
			{Path: "b.pdf", Number: 1},
			{Path: "b.pdf", Number: 2},
		},
	}}
	eng := &fakeEngine{frames: map[string]*frame.Frame{
		engineKey(1, "0,700,400,300"): itemRows("Widget"),
		engineKey(2, "0,780,400,300"): itemRows("Gadget", "Sprocket"),
	}}

	res := NewExtractor(source, eng, AssociateAll, quiet()).ExtractDocument(tpl, "b.pdf")

	items := res.Section(template.SectionItems)
	assert.Equal(t, StatusSuccess, items.Status)
	require.Len(t, items.Frames, 2)
	assert.Equal(t, "1", items.Frames[0].Value(0, frame.PageColumn))
	assert.Equal(t, "2", items.Frames[1].Value(0, frame.PageColumn))
}
