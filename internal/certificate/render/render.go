// Package render lays certificates out as documents whose labeled lines the
// extract package can read back.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"certvault/internal/certificate/models"
)

const (
	title      = "Certificate of Completion"
	dateLayout = "2006-01-02"
)

// Lines returns the labeled body lines of a certificate in drawing order.
func Lines(f models.CertificateFields, issuedAt time.Time) []string {
	return []string{
		title,
		"This is to certify that " + f.CandidateName,
		"has successfully completed the " + f.CourseName,
		"offered by " + f.OrgName,
		"Certificate ID: " + f.UID,
		"Date: " + issuedAt.UTC().Format(dateLayout),
	}
}

// UnsupportedTextError reports a field the renderer cannot write losslessly.
type UnsupportedTextError struct {
	Attribute models.Attribute
	Rune      rune
}

func (e *UnsupportedTextError) Error() string {
	return fmt.Sprintf("%s contains %q, which certificates cannot display", e.Attribute, e.Rune)
}

// PDFRenderer draws an A4 certificate with core fonts. Core fonts are
// Windows-1252 encoded, so every field must be representable in it.
type PDFRenderer struct{}

func (PDFRenderer) ContentType() string { return "application/pdf" }

// Check returns *UnsupportedTextError for the first field holding a rune
// outside Windows-1252 or a control character.
func (PDFRenderer) Check(f models.CertificateFields) error {
	for _, attr := range models.FieldAttributes {
		for _, r := range f.Get(attr) {
			if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
				return &UnsupportedTextError{Attribute: attr, Rune: r}
			}
			if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
				return &UnsupportedTextError{Attribute: attr, Rune: r}
			}
		}
	}
	return nil
}

func (p PDFRenderer) Render(_ context.Context, f models.CertificateFields, issuedAt time.Time) ([]byte, error) {
	if err := p.Check(f); err != nil {
		return nil, err
	}
	lines := Lines(f, issuedAt)

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(20, 25, 20)
	doc.SetCreationDate(issuedAt)
	doc.SetModificationDate(issuedAt)
	doc.SetTitle(title, true)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont("Helvetica", "B", 24)
	doc.CellFormat(0, 14, tr(lines[0]), "", 1, "C", false, 0, "")
	doc.Ln(8)

	sizes := []float64{18, 16, 16}
	for i, line := range lines[1:4] {
		doc.SetFont("Helvetica", "", sizes[i])
		doc.CellFormat(0, 10, tr(line), "", 1, "C", false, 0, "")
		doc.Ln(3)
	}
	doc.Ln(14)

	doc.SetFont("Helvetica", "", 12)
	doc.CellFormat(0, 8, tr(lines[4]), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 8, tr(lines[5]), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// TextRenderer writes one labeled line per row.
type TextRenderer struct{}

func (TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

func (TextRenderer) Render(_ context.Context, f models.CertificateFields, issuedAt time.Time) ([]byte, error) {
	return []byte(strings.Join(Lines(f, issuedAt), "\n") + "\n"), nil
}
