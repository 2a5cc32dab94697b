package export

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"penwise/internal/document"
	"penwise/internal/tracker"
)

// PDFRenderer turns a rendered HTML page into a PDF.
type PDFRenderer func(ctx context.Context, html string) ([]byte, error)

// Service provides document export functionality
type Service struct {
	pdf    PDFRenderer
	logger *zap.SugaredLogger
}

// Option configures a Service.
type Option func(*Service)

// WithPDFRenderer replaces the headless Chrome renderer.
func WithPDFRenderer(r PDFRenderer) Option {
	return func(s *Service) { s.pdf = r }
}

// NewService creates an export service. chromePath may be empty to look up
// chromium on PATH.
func NewService(chromePath string, logger *zap.SugaredLogger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Service{pdf: chromePDF(chromePath), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export renders the document with its decorations and a suggestion
// appendix in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Doc == nil {
		return nil, fmt.Errorf("export: no document")
	}
	html, err := RenderDocumentHTML(buildTemplateData(req))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case "", FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(req.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		data, err := s.pdf(ctx, html)
		if err != nil {
			s.logger.Warnw("pdf export failed", "title", req.Title, "error", err)
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: sanitizeFilename(req.Title) + ".pdf",
			MimeType: "application/pdf",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

func buildTemplateData(req Request) TemplateData {
	data := TemplateData{
		Title:       req.Title,
		Author:      req.Author,
		UpdatedAt:   req.UpdatedAt,
		ContentHTML: template.HTML(document.ToHTML(req.Doc, req.Decorations)),
		Stats:       req.Stats,
	}
	if data.Title == "" {
		data.Title = "Untitled"
	}

	text := []rune(req.Doc.PlainText())
	counts := map[tracker.Category]int{}
	for _, sg := range req.Suggestions {
		counts[sg.Category]++
		excerpt := ""
		if sg.Offset >= 0 && sg.End() <= len(text) {
			excerpt = string(text[sg.Offset:sg.End()])
		}
		data.Suggestions = append(data.Suggestions, TemplateSuggestion{
			Category:     string(sg.Category),
			Excerpt:      excerpt,
			Message:      sg.Message,
			Replacements: sg.Replacements,
		})
	}
	for _, c := range []tracker.Category{tracker.CategorySpelling, tracker.CategoryGrammar, tracker.CategoryStyle} {
		if counts[c] > 0 {
			data.Counts = append(data.Counts, TemplateCount{Category: string(c), Count: counts[c]})
		}
	}
	return data
}

func normalizeFormat(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
