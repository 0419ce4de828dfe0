package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/veridata/invoiceminer/internal/extract"
	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/template"
)

// Filename column added to flattened delimited exports so rows from
// different documents stay attributable.
const sourceColumn = "source_file"

// WriteCSV writes one CSV per section into dir, rows from all documents of
// the batch concatenated, and returns the written paths. Sections with no
// data produce no file.
func WriteCSV(batch *extract.Batch, dir string) ([]string, error) {
	stamp := time.Now().UTC().Format(fileStampLayout)
	var paths []string
	for _, section := range template.Sections() {
		columns, rows := flattenSection(batch, section)
		if len(rows) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", section, stamp))
		if err := writeCSVFile(path, columns, rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// flattenSection collects every row of the section across the batch into
// one table: the union of all frame columns plus the source file column.
func flattenSection(batch *extract.Batch, section template.Section) ([]string, []map[string]string) {
	columns := []string{sourceColumn, frame.PageColumn}
	seen := map[string]bool{sourceColumn: true, frame.PageColumn: true}
	var rows []map[string]string

	for _, result := range batch.Results {
		sec := result.Section(section)
		if sec == nil {
			continue
		}
		for _, f := range sec.Frames {
			for _, name := range f.Columns {
				if !seen[name] {
					seen[name] = true
					columns = append(columns, name)
				}
			}
			for _, rec := range f.Records() {
				rec[sourceColumn] = result.Filename
				rows = append(rows, rec)
			}
		}
	}
	return columns, rows
}

func writeCSVFile(path string, columns []string, rows []map[string]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
