package extract

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"certvault/internal/certificate/models"
	"certvault/internal/certificate/render"
	dErrors "certvault/pkg/domain-errors"
)

type ExtractorSuite struct {
	suite.Suite
	ctx       context.Context
	extractor *Extractor
	fields    models.CertificateFields
}

func TestExtractorSuite(t *testing.T) {
	suite.Run(t, new(ExtractorSuite))
}

func (s *ExtractorSuite) SetupTest() {
	s.ctx = context.Background()
	s.extractor = New()
	s.fields = models.CertificateFields{
		UID:           "C-1",
		CandidateName: "Ada Lovelace",
		CourseName:    "Algorithms",
		OrgName:       "Acme Academy",
	}
}

// =============================================================================
// Line assembly
// =============================================================================

func (s *ExtractorSuite) TestLines() {
	s.Run("same row runs concatenate in encounter order", func() {
		runs := []TextRun{
			{Page: 1, Y: 700, Text: "This is to "},
			{Page: 1, Y: 650, Text: "offered by Acme"},
			{Page: 1, Y: 700, Text: "certify that Ada"},
			{Page: 1, Y: 650, Text: " Academy  "},
		}
		s.Equal([]string{"This is to certify that Ada", "offered by Acme Academy"}, Lines(runs))
	})

	s.Run("same y on different pages are separate lines", func() {
		runs := []TextRun{
			{Page: 1, Y: 100, Text: "first"},
			{Page: 2, Y: 100, Text: "second"},
		}
		s.Equal([]string{"first", "second"}, Lines(runs))
	})

	s.Run("blank rows are dropped", func() {
		runs := []TextRun{{Page: 1, Y: 1, Text: "   "}, {Page: 1, Y: 2, Text: "x"}}
		s.Equal([]string{"x"}, Lines(runs))
	})
}

// =============================================================================
// Field matching
// =============================================================================

func (s *ExtractorSuite) TestMatchFieldsAnyOrder() {
	lines := []string{
		"Certificate ID: C-1",
		"offered by Acme Academy",
		"has successfully completed the Algorithms",
		"This is to certify that Ada Lovelace",
	}
	fields, missing := MatchFields(lines)
	s.Empty(missing)
	s.Equal(s.fields, fields)
}

func (s *ExtractorSuite) TestMatchFieldsFirstMatchWins() {
	lines := []string{
		"This is to certify that Ada Lovelace",
		"This is to certify that Somebody Else",
		"completed the Algorithms",
		"offered by Acme Academy",
		"UID: C-1",
		"ID: C-2",
	}
	fields, missing := MatchFields(lines)
	s.Empty(missing)
	s.Equal("Ada Lovelace", fields.CandidateName)
	s.Equal("C-1", fields.UID)
}

func (s *ExtractorSuite) TestMatchFieldsCaseInsensitive() {
	fields, missing := MatchFields([]string{
		"THIS IS TO CERTIFY THAT Ada Lovelace",
		"Completed The Algorithms",
		"OFFERED BY Acme Academy",
		"certificate id : C-1",
	})
	s.Empty(missing)
	s.Equal(s.fields, fields)
}

func (s *ExtractorSuite) TestMatchFieldsLineCanFeedSeveralAttributes() {
	fields, missing := MatchFields([]string{
		"This is to certify that Ada completed the Algorithms offered by Acme ID: C-1",
	})
	s.Empty(missing)
	s.Equal("C-1", fields.UID)
	s.Equal("Acme ID: C-1", fields.OrgName)
	s.Equal("Algorithms offered by Acme ID: C-1", fields.CourseName)
}

func (s *ExtractorSuite) TestMatchFieldsReportsExactlyTheMissingAttribute() {
	for _, drop := range models.FieldAttributes {
		s.Run(string(drop), func() {
			var lines []string
			for _, line := range render.Lines(s.fields, time.Now()) {
				if drop == models.AttrUID && strings.HasPrefix(line, "Certificate ID") {
					continue
				}
				if drop == models.AttrCandidateName && strings.HasPrefix(line, "This is to certify") {
					continue
				}
				if drop == models.AttrCourseName && strings.HasPrefix(line, "has successfully") {
					continue
				}
				if drop == models.AttrOrgName && strings.HasPrefix(line, "offered by") {
					continue
				}
				lines = append(lines, line)
			}
			_, missing := MatchFields(lines)
			s.Equal([]models.Attribute{drop}, missing)
		})
	}
}

// =============================================================================
// Extract
// =============================================================================

func (s *ExtractorSuite) TestExtractTextDocument() {
	doc, err := render.TextRenderer{}.Render(s.ctx, s.fields, time.Now())
	s.Require().NoError(err)

	fields, err := s.extractor.Extract(s.ctx, doc)
	s.Require().NoError(err)
	s.Equal(s.fields, fields)
}

func (s *ExtractorSuite) TestExtractFailureNamesAllMissing() {
	_, err := s.extractor.Extract(s.ctx, []byte("Certificate of Completion\nCertificate ID: C-1\n"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	var extractionErr *models.ExtractionError
	s.Require().ErrorAs(err, &extractionErr)
	s.Equal([]models.Attribute{models.AttrCandidateName, models.AttrCourseName, models.AttrOrgName}, extractionErr.Missing)
}

func (s *ExtractorSuite) TestExtractEmptyDocument() {
	_, err := s.extractor.Extract(s.ctx, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ExtractorSuite) TestExtractUnreadablePDF() {
	_, err := s.extractor.Extract(s.ctx, []byte("%PDF-1.4 truncated"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestExtractRenderedPDF(t *testing.T) {
	ctx := context.Background()
	fields := models.CertificateFields{
		UID:           "C-1",
		CandidateName: "Ada Lovelace",
		CourseName:    "Algorithms",
		OrgName:       "Acme Academy",
	}
	doc, err := render.PDFRenderer{}.Render(ctx, fields, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(doc), "%PDF-"))

	got, err := New().Extract(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, fields, got)
}

func TestRenderedPDFKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, name := range []string{"Zoë Brontë", "François Müller", "Seán O'Brien"} {
		t.Run(name, func(t *testing.T) {
			fields := models.CertificateFields{
				UID:           "C-7",
				CandidateName: name,
				CourseName:    "Algorithms",
				OrgName:       "Acme Academy",
			}
			doc, err := render.PDFRenderer{}.Render(ctx, fields, at)
			require.NoError(t, err)

			got, err := New().Extract(ctx, doc)
			require.NoError(t, err)
			assert.Equal(t, fields, got)

			want, err := models.DeriveIdentity(fields)
			require.NoError(t, err)
			id, err := models.DeriveIdentity(got)
			require.NoError(t, err)
			assert.Equal(t, want, id)
		})
	}

	for _, name := range []string{"Łukasz Żółć", "李小龍"} {
		t.Run("refuses "+name, func(t *testing.T) {
			_, err := render.PDFRenderer{}.Render(ctx, models.CertificateFields{
				UID:           "C-7",
				CandidateName: name,
				CourseName:    "Algorithms",
				OrgName:       "Acme Academy",
			}, at)
			var unsupported *render.UnsupportedTextError
			require.ErrorAs(t, err, &unsupported)
		})
	}
}
