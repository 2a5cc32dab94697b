// Package export renders annotated review copies of a document as HTML or PDF.
package export

import (
	"errors"
	"time"

	"penwise/internal/analysis"
	"penwise/internal/document"
	"penwise/internal/tracker"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts a format name case-insensitively; empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch Format(normalizeFormat(s)) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Request contains everything an export needs. Decorations and Suggestions
// come from the document's editing session at export time.
type Request struct {
	Title       string
	Author      string
	UpdatedAt   time.Time
	Doc         *document.Doc
	Suggestions []tracker.Suggestion
	Decorations []tracker.DisplaySpan
	Stats       analysis.Stats
	Format      Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	// ArchiveURL is a download link for the archived copy, when archiving is on.
	ArchiveURL string
}

var (
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
