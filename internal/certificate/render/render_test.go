package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certvault/internal/certificate/models"
)

func TestLines(t *testing.T) {
	f := models.CertificateFields{UID: "C-1", CandidateName: "Ada Lovelace", CourseName: "Algorithms", OrgName: "Acme Academy"}
	lines := Lines(f, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC))

	assert.Equal(t, []string{
		"Certificate of Completion",
		"This is to certify that Ada Lovelace",
		"has successfully completed the Algorithms",
		"offered by Acme Academy",
		"Certificate ID: C-1",
		"Date: 2024-03-01",
	}, lines)
}

func TestRenderers(t *testing.T) {
	ctx := context.Background()
	f := models.CertificateFields{UID: "C-1", CandidateName: "Ada", CourseName: "Go", OrgName: "Acme"}
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("pdf", func(t *testing.T) {
		doc, err := PDFRenderer{}.Render(ctx, f, at)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
		assert.Equal(t, "application/pdf", PDFRenderer{}.ContentType())
	})

	t.Run("text", func(t *testing.T) {
		doc, err := TextRenderer{}.Render(ctx, f, at)
		require.NoError(t, err)
		assert.Contains(t, string(doc), "Certificate ID: C-1\n")
	})
}

func TestPDFRendererCheck(t *testing.T) {
	base := models.CertificateFields{UID: "C-1", CandidateName: "Ada", CourseName: "Go", OrgName: "Acme"}

	t.Run("accepts windows-1252 names", func(t *testing.T) {
		f := base
		f.CandidateName = "Zoë Brontë"
		f.OrgName = "École Supérieure"
		assert.NoError(t, PDFRenderer{}.Check(f))
	})

	cases := []struct {
		name string
		attr models.Attribute
		set  func(*models.CertificateFields)
		want rune
	}{
		{"polish letters", models.AttrCandidateName, func(f *models.CertificateFields) { f.CandidateName = "Łukasz Żółć" }, 'Ł'},
		{"cjk", models.AttrCandidateName, func(f *models.CertificateFields) { f.CandidateName = "李小龍" }, '李'},
		{"control character", models.AttrCourseName, func(f *models.CertificateFields) { f.CourseName = "Go\tAdvanced" }, '\t'},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := base
			tc.set(&f)

			var unsupported *UnsupportedTextError
			require.ErrorAs(t, PDFRenderer{}.Check(f), &unsupported)
			assert.Equal(t, tc.attr, unsupported.Attribute)
			assert.Equal(t, tc.want, unsupported.Rune)

			_, err := PDFRenderer{}.Render(context.Background(), f, time.Now())
			assert.ErrorAs(t, err, &unsupported)
		})
	}
}
