package export

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/veridata/invoiceminer/internal/extract"
	"github.com/veridata/invoiceminer/internal/template"
	"github.com/veridata/invoiceminer/internal/validation"
)

// WriteXLSX writes the batch as one workbook: a summary sheet plus one
// sheet per section with data. Returns the file path.
func WriteXLSX(batch *extract.Batch, dir string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, batch); err != nil {
		return "", err
	}

	for _, section := range template.Sections() {
		columns, rows := flattenSection(batch, section)
		if len(rows) == 0 {
			continue
		}
		sheet := string(section)
		if _, err := f.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, columns, rows); err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("results_%s.xlsx", time.Now().UTC().Format(fileStampLayout)))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeSummarySheet(f *excelize.File, batch *extract.Batch) error {
	const sheet = "Sheet1"
	header := []any{"filename", "page_count", "template", "status", "error"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for i, result := range batch.Results {
		row := []any{
			result.Filename, result.PageCount, result.TemplateName,
			string(result.Overall), result.Error,
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, columns []string, rows []map[string]string) error {
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cells := make([]any, len(columns))
		for j, col := range columns {
			cells[j] = row[col]
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write %s row: %w", sheet, err)
		}
	}
	return nil
}

// WriteValidationXLSX writes a validation report workbook: section tallies
// on the first sheet, one issue per row on the second.
func WriteValidationXLSX(report *validation.Report, dir string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Sheet1"
	header := []any{"section", "passed", "failed"}
	if err := f.SetSheetRow(summary, "A1", &header); err != nil {
		return "", fmt.Errorf("write validation header: %w", err)
	}
	sections := []string{
		validation.SectionHeader, validation.SectionItems,
		validation.SectionSummary, validation.SectionMetadata,
	}
	for i, section := range sections {
		tally := report.Sections[section]
		if tally == nil {
			tally = &validation.SectionTally{}
		}
		row := []any{section, tally.Passed, tally.Failed}
		if err := f.SetSheetRow(summary, "A"+strconv.Itoa(i+2), &row); err != nil {
			return "", fmt.Errorf("write validation row: %w", err)
		}
	}

	const issues = "issues"
	if _, err := f.NewSheet(issues); err != nil {
		return "", fmt.Errorf("create issues sheet: %w", err)
	}
	issueHeader := []any{"kind", "path", "column", "row", "rule", "message"}
	if err := f.SetSheetRow(issues, "A1", &issueHeader); err != nil {
		return "", fmt.Errorf("write issues header: %w", err)
	}
	for i, issue := range report.Issues {
		row := []any{
			string(issue.Kind), issue.Path, issue.Column,
			issue.Row, string(issue.Rule), issue.Message,
		}
		if err := f.SetSheetRow(issues, "A"+strconv.Itoa(i+2), &row); err != nil {
			return "", fmt.Errorf("write issue row: %w", err)
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("validation_%s.xlsx", time.Now().UTC().Format(fileStampLayout)))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save validation workbook: %w", err)
	}
	return path, nil
}
