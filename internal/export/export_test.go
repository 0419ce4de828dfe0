package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/invoiceminer/internal/extract"
	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/template"
)

func sectionFrame(page string, rows ...[]string) *frame.Frame {
	f := frame.New("0", "1", frame.PageColumn)
	for _, r := range rows {
		f.AppendRow(r[0], r[1], page)
	}
	return f
}

func sampleBatch() *extract.Batch {
	itemsP1 := sectionFrame("1", []string{"Widget", "5.00"}, []string{"Gadget", "9.99"})
	itemsP2 := sectionFrame("2", []string{"Sprocket", "1.50"})
	summary := sectionFrame("2", []string{"Total", "16.49"})

	multi := &extract.DocumentResult{
		Filename:     "inv-001.pdf",
		Path:         "/in/inv-001.pdf",
		PageCount:    2,
		TemplateName: "acme",
		TemplateType: template.TypeMulti,
		Overall:      extract.StatusSuccess,
		Sections: map[template.Section]*extract.SectionResult{
			template.SectionHeader: {Status: extract.StatusNotProcessed},
			template.SectionItems: {
				Status: extract.StatusSuccess,
				Frames: []*frame.Frame{itemsP1, itemsP2},
			},
			template.SectionSummary: {
				Status: extract.StatusSuccess,
				Frames: []*frame.Frame{summary},
			},
		},
	}
	failed := &extract.DocumentResult{
		Filename: "broken.pdf",
		Path:     "/in/broken.pdf",
		Overall:  extract.StatusFailed,
		Error:    "unreadable PDF",
		Sections: map[template.Section]*extract.SectionResult{
			template.SectionHeader:  {Status: extract.StatusNotProcessed},
			template.SectionItems:   {Status: extract.StatusNotProcessed},
			template.SectionSummary: {Status: extract.StatusNotProcessed},
		},
	}

	return &extract.Batch{
		RunID:      "run-123",
		Template:   template.Info{Name: "acme", Type: template.TypeMulti},
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Results:    []*extract.DocumentResult{multi, failed},
		Counts: map[extract.Status]int{
			extract.StatusSuccess: 1,
			extract.StatusFailed:  1,
		},
	}
}

func TestBuildJSON(t *testing.T) {
	payload := BuildJSON(sampleBatch())
	require.Len(t, payload, 2)

	doc := payload["inv-001.pdf"]
	assert.Equal(t, "inv-001.pdf", doc.Metadata.Filename)
	assert.Equal(t, 2, doc.Metadata.PageCount)
	assert.Equal(t, "run-123", doc.Metadata.RunID)
	assert.Equal(t, "success", doc.Metadata.Status)

	// Items rows span two pages: the section becomes a page_<n> map.
	items, ok := doc.Sections["items"].(map[string][]map[string]string)
	require.True(t, ok)
	assert.Len(t, items["page_1"], 2)
	assert.Len(t, items["page_2"], 1)

	// Summary rows sit on one page: a flat row list.
	summary, ok := doc.Sections["summary"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, summary, 1)
	assert.Equal(t, "16.49", summary[0]["1"])

	// No frames, no section key.
	_, hasHeader := doc.Sections["header"]
	assert.False(t, hasHeader)

	failed := payload["broken.pdf"]
	assert.Equal(t, "failed", failed.Metadata.Status)
	assert.Empty(t, failed.Sections)
}

func TestDocumentJSONInlinesSections(t *testing.T) {
	doc := DocumentJSON{
		Metadata: MetadataJSON{Filename: "a.pdf", Status: "success"},
		Sections: map[string]any{
			"items": []map[string]string{{"0": "Widget"}},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "metadata")
	assert.Contains(t, decoded, "items")
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(sampleBatch(), dir)
	require.NoError(t, err)
	assert.Regexp(t, `results_\d{8}_\d{6}\.json$`, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "inv-001.pdf")
	assert.Contains(t, decoded, "broken.pdf")
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteCSV(sampleBatch(), dir)
	require.NoError(t, err)
	// Header produced no rows, so only items and summary files exist.
	require.Len(t, paths, 2)

	file, err := os.Open(paths[0])
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4) // header + 3 item rows
	assert.Equal(t, []string{sourceColumn, frame.PageColumn, "0", "1"}, records[0])
	assert.Equal(t, "inv-001.pdf", records[1][0])
}

func TestWriteXLSX(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteXLSX(sampleBatch(), dir)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestDatasetFromBatch(t *testing.T) {
	data := DatasetFromBatch(sampleBatch())
	require.Len(t, data.Records, 2)

	// Records land in map order; find the multi-page document by its
	// prefixed metadata column.
	var rec map[string]string
	for _, r := range data.Records {
		if r["inv_001_metadata_filename"] == "inv-001.pdf" {
			rec = r
		}
	}
	require.NotNil(t, rec)
	assert.Equal(t, "Widget", rec["inv_001_items_page_1_0_0"])
	assert.Equal(t, "16.49", rec["inv_001_summary_0_1"])
}

func TestLoadDatasetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteJSON(sampleBatch(), dir)
	require.NoError(t, err)

	data, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, data.Records, 2)

	var found bool
	for _, rec := range data.Records {
		if rec["inv_001_summary_0_1"] == "16.49" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFilenamePrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"inv-001.pdf", "inv_001"},
		{"My Invoice (final).PDF", "My_Invoice_final"},
		{"plain", "plain"},
		{"__weird__.pdf", "weird"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FilenamePrefix(tt.in))
	}
}
