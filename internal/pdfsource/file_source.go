package pdfsource

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// FileSource reads PDFs from the local filesystem. Page counting and the
// readability probe go through pdfcpu with relaxed validation; positioned
// text comes from ledongthuc/pdf, which exposes per-run coordinates.
//
// FileSource is stateless and safe for concurrent use.
type FileSource struct {
	maxFileSize int64
}

// NewFileSource creates a file-backed source. maxFileSize <= 0 disables the
// size check.
func NewFileSource(maxFileSize int64) *FileSource {
	return &FileSource{maxFileSize: maxFileSize}
}

// PageCount returns the document's page count via pdfcpu. Any open, parse
// or validation failure is reported as ErrUnreadable so the caller can
// record the document as fully failed.
func (s *FileSource) PageCount(path string) (int, error) {
	if err := s.validatePath(path); err != nil {
		return 0, &SourceError{Op: "stat", Path: path, Err: err}
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, &SourceError{Op: "open", Path: path, Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return 0, &SourceError{Op: "read", Path: path, Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, &SourceError{Op: "page_count", Path: path, Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	return ctx.PageCount, nil
}

// Page returns the text runs of the 0-based page index.
func (s *FileSource) Page(path string, index int) (*PageHandle, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &SourceError{Op: "open", Path: path, Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	defer f.Close()

	pageNum := index + 1
	if pageNum < 1 || pageNum > reader.NumPage() {
		return nil, &SourceError{Op: "page", Path: path,
			Err: fmt.Errorf("page index %d out of range (document has %d pages)", index, reader.NumPage())}
	}

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, &SourceError{Op: "page", Path: path,
			Err: fmt.Errorf("page %d is null", pageNum)}
	}

	content := page.Content()
	runs := make([]TextRun, 0, len(content.Text))
	for _, text := range content.Text {
		height := text.FontSize
		if height == 0 {
			height = 12.0
		}
		runs = append(runs, TextRun{
			Text:     text.S,
			X:        text.X,
			Y:        text.Y,
			Width:    text.W,
			Height:   height,
			FontSize: text.FontSize,
		})
	}

	return &PageHandle{Path: path, Number: pageNum, Runs: runs}, nil
}

func (s *FileSource) validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), s.maxFileSize)
	}
	return nil
}
