package extract

import (
	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/template"
)

// SectionResult collects the cleaned frames and the extraction status of
// one section across all processed pages of a document.
type SectionResult struct {
	Frames []*frame.Frame `json:"frames"`
	Status Status         `json:"status"`
	Reason string         `json:"reason,omitempty"`
}

// DocumentResult is the extraction result bundle for one source document.
type DocumentResult struct {
	Filename     string                              `json:"filename"`
	Path         string                              `json:"path"`
	PageCount    int                                 `json:"page_count"`
	TemplateName string                              `json:"template_name"`
	TemplateType string                              `json:"template_type"`
	Sections     map[template.Section]*SectionResult `json:"sections"`
	Overall      Status                              `json:"overall_status"`
	Error        string                              `json:"error,omitempty"`
}

func newDocumentResult(path, filename string, tpl *template.Template) *DocumentResult {
	sections := make(map[template.Section]*SectionResult, 3)
	for _, s := range template.Sections() {
		sections[s] = &SectionResult{Status: StatusNotProcessed}
	}
	result := &DocumentResult{
		Filename: filename,
		Path:     path,
		Sections: sections,
		Overall:  StatusFailed,
	}
	if tpl != nil {
		result.TemplateName = tpl.Name
		result.TemplateType = tpl.Type
	}
	return result
}

// Section returns the result for a section, never nil.
func (r *DocumentResult) Section(s template.Section) *SectionResult {
	return r.Sections[s]
}

func (r *DocumentResult) finalize() {
	r.Overall = Overall(
		r.Sections[template.SectionHeader].Status,
		r.Sections[template.SectionItems].Status,
		r.Sections[template.SectionSummary].Status,
	)
}
