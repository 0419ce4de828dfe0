// Package pdfsource is the PDF boundary of the pipeline. The core consumes
// documents only through Source: a page count probe and per-page handles
// carrying positioned text runs. Implementations wrap pdfcpu (counting,
// readability) and ledongthuc/pdf (positioned text); the rest of the system
// never imports a PDF library directly.
package pdfsource

import (
	"errors"
	"fmt"
)

// ErrUnreadable marks a document that cannot be opened or parsed at all.
// Such documents are recorded as fully failed with page_count = 0.
var ErrUnreadable = errors.New("unreadable PDF")

// TextRun is one positioned text fragment on a page. Coordinates are PDF
// user-space points with the origin at the lower left.
type TextRun struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
}

// PageHandle is an opaque handle to one PDF page, passed through to the
// table engine. Number is 1-based, matching the pdf_page tag on rows.
type PageHandle struct {
	Path   string
	Number int
	Runs   []TextRun
}

// Source provides document-level access to PDFs.
type Source interface {
	// PageCount returns the number of pages, or ErrUnreadable.
	PageCount(path string) (int, error)
	// Page returns a handle for the 0-based page index.
	Page(path string, index int) (*PageHandle, error)
}

// SourceError wraps a failure with the operation and file for reporting.
type SourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("pdf %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
