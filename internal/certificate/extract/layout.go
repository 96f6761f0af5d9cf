package extract

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// TextLayoutReader treats each text line as one run on its own row.
type TextLayoutReader struct{}

func (TextLayoutReader) Runs(doc []byte) ([]TextRun, error) {
	var runs []TextRun
	sc := bufio.NewScanner(bytes.NewReader(doc))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	row := 0
	for sc.Scan() {
		runs = append(runs, TextRun{Page: 1, Y: float64(row), Text: sc.Text()})
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan text document: %w", err)
	}
	return runs, nil
}

// PDFLayoutReader emits one run per glyph with its page and baseline.
type PDFLayoutReader struct{}

func (PDFLayoutReader) Runs(doc []byte) (runs []TextRun, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			runs, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, t := range page.Content().Text {
			runs = append(runs, TextRun{Page: i, X: t.X, Y: t.Y, Text: t.S})
		}
	}
	return runs, nil
}
