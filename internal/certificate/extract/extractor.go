// Package extract reads certificate fields back out of a rendered document.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"

	"certvault/internal/certificate/models"
	dErrors "certvault/pkg/domain-errors"
)

// TextRun is one positioned piece of text from a document layout.
type TextRun struct {
	Page int
	X, Y float64
	Text string
}

// LayoutReader turns raw document bytes into positioned text runs in the
// order the document draws them.
type LayoutReader interface {
	Runs(doc []byte) ([]TextRun, error)
}

type fieldPattern struct {
	attr models.Attribute
	re   *regexp.Regexp
}

// patterns are applied in order to every line; the first line to match an
// attribute wins.
var patterns = []fieldPattern{
	{models.AttrUID, regexp.MustCompile(`(?i)\b(?:UID|ID)\s*:\s*(.+)`)},
	{models.AttrCandidateName, regexp.MustCompile(`(?i)This is to certify that\s+(.+)$`)},
	{models.AttrCourseName, regexp.MustCompile(`(?i)completed the\s+(.+)$`)},
	{models.AttrOrgName, regexp.MustCompile(`(?i)offered by\s+(.+)$`)},
}

var pdfMagic = []byte("%PDF-")

// Extractor parses untrusted documents into CertificateFields.
type Extractor struct {
	pdf    LayoutReader
	text   LayoutReader
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for extraction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithPDFReader overrides the reader used for PDF documents.
func WithPDFReader(r LayoutReader) Option {
	return func(e *Extractor) {
		e.pdf = r
	}
}

// New builds an Extractor that reads PDFs with PDFLayoutReader and anything
// else as line-per-row text.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		pdf:  PDFLayoutReader{},
		text: TextLayoutReader{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns all four fields or fails with an ExtractionError naming
// every attribute that no line matched.
func (e *Extractor) Extract(ctx context.Context, doc []byte) (models.CertificateFields, error) {
	if len(doc) == 0 {
		return models.CertificateFields{}, dErrors.New(dErrors.CodeInvalidInput, "document is empty")
	}
	reader := e.text
	if bytes.HasPrefix(doc, pdfMagic) {
		reader = e.pdf
	}
	runs, err := reader.Runs(doc)
	if err != nil {
		return models.CertificateFields{}, dErrors.Wrap(err, dErrors.CodeValidation, "document could not be parsed")
	}

	lines := Lines(runs)
	fields, missing := MatchFields(lines)
	if len(missing) > 0 {
		if e.logger != nil {
			e.logger.InfoContext(ctx, "extraction incomplete",
				"missing", models.JoinAttributes(missing),
				"lines", len(lines),
			)
		}
		return models.CertificateFields{}, dErrors.Wrap(&models.ExtractionError{Missing: missing},
			dErrors.CodeValidation, "document missing required fields: "+models.JoinAttributes(missing))
	}
	return fields, nil
}

type lineKey struct {
	page int
	y    float64
}

// Lines groups runs by page and vertical position, concatenating runs on the
// same line in encounter order. Lines are returned in order of first
// appearance, trimmed, and blank lines are dropped.
func Lines(runs []TextRun) []string {
	var order []lineKey
	texts := make(map[lineKey]*strings.Builder)
	for _, run := range runs {
		key := lineKey{page: run.Page, y: run.Y}
		b, ok := texts[key]
		if !ok {
			b = &strings.Builder{}
			texts[key] = b
			order = append(order, key)
		}
		b.WriteString(run.Text)
	}

	lines := make([]string, 0, len(order))
	for _, key := range order {
		if line := strings.TrimSpace(texts[key].String()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// MatchFields applies the field patterns to every line. A line may satisfy
// several attributes; an attribute keeps its first match. The returned
// missing slice is in canonical attribute order.
func MatchFields(lines []string) (models.CertificateFields, []models.Attribute) {
	var fields models.CertificateFields
	found := make(map[models.Attribute]bool, len(patterns))
	for _, line := range lines {
		for _, p := range patterns {
			if found[p.attr] {
				continue
			}
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			value := strings.TrimSpace(m[1])
			if value == "" {
				continue
			}
			fields.Set(p.attr, value)
			found[p.attr] = true
		}
	}

	var missing []models.Attribute
	for _, attr := range models.FieldAttributes {
		if !found[attr] {
			missing = append(missing, attr)
		}
	}
	return fields, missing
}
