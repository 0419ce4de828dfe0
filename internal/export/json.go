// Package export serializes extraction batches and validation reports to
// JSON, CSV and XLSX. No bit-exact layout is promised beyond the JSON
// contract: UTF-8, one object per source document keyed by filename, with a
// metadata block and one key per section.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/veridata/invoiceminer/internal/extract"
	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/template"
)

// Timestamp layout used in export file names.
const fileStampLayout = "20060102_150405"

// DocumentJSON is the per-document export shape.
type DocumentJSON struct {
	Metadata MetadataJSON   `json:"metadata"`
	Sections map[string]any `json:"-"`
}

// MetadataJSON identifies the document and run inside an export.
type MetadataJSON struct {
	Filename     string `json:"filename"`
	PageCount    int    `json:"page_count"`
	TemplateType string `json:"template_type"`
	TemplateName string `json:"template_name"`
	ExportedAt   string `json:"exported_at"`
	RunID        string `json:"run_id,omitempty"`
	Status       string `json:"status"`
}

// MarshalJSON inlines the section keys next to metadata.
func (d DocumentJSON) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Sections)+1)
	out["metadata"] = d.Metadata
	for k, v := range d.Sections {
		out[k] = v
	}
	return json.Marshal(out)
}

// BuildJSON renders a batch as the export object: one entry per source
// document keyed by filename. A section whose rows span multiple PDF pages
// becomes a page_<n> map; otherwise it is a flat list of row-records.
func BuildJSON(batch *extract.Batch) map[string]DocumentJSON {
	now := time.Now().UTC().Format(time.RFC3339)
	out := make(map[string]DocumentJSON, len(batch.Results))
	for _, result := range batch.Results {
		doc := DocumentJSON{
			Metadata: MetadataJSON{
				Filename:     result.Filename,
				PageCount:    result.PageCount,
				TemplateType: result.TemplateType,
				TemplateName: result.TemplateName,
				ExportedAt:   now,
				RunID:        batch.RunID,
				Status:       string(result.Overall),
			},
			Sections: make(map[string]any, len(result.Sections)),
		}
		for _, section := range template.Sections() {
			sec := result.Section(section)
			if sec == nil || len(sec.Frames) == 0 {
				continue
			}
			doc.Sections[string(section)] = sectionValue(sec.Frames)
		}
		out[result.Filename] = doc
	}
	return out
}

// sectionValue flattens the section's frames into row-records, splitting
// into a page_<n> map when rows carry more than one distinct page tag.
func sectionValue(frames []*frame.Frame) any {
	byPage := make(map[string][]map[string]string)
	var pageOrder []string
	for _, f := range frames {
		for _, rec := range f.Records() {
			page := rec[frame.PageColumn]
			if _, seen := byPage[page]; !seen {
				pageOrder = append(pageOrder, page)
			}
			byPage[page] = append(byPage[page], rec)
		}
	}
	if len(byPage) <= 1 {
		var rows []map[string]string
		for _, page := range pageOrder {
			rows = append(rows, byPage[page]...)
		}
		return rows
	}
	out := make(map[string][]map[string]string, len(byPage))
	for page, rows := range byPage {
		out["page_"+page] = rows
	}
	return out
}

// WriteJSON writes the batch export into dir, named by timestamp, and
// returns the file path.
func WriteJSON(batch *extract.Batch, dir string) (string, error) {
	payload := BuildJSON(batch)
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("results_%s.json", time.Now().UTC().Format(fileStampLayout)))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
