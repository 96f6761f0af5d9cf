package models

import (
	"fmt"
	"strings"
)

// Attribute names a field of a certificate or ledger record. The string
// values are the names used on the wire and in diagnostics.
type Attribute string

const (
	AttrUID             Attribute = "uid"
	AttrCandidateName   Attribute = "candidateName"
	AttrCourseName      Attribute = "courseName"
	AttrOrgName         Attribute = "orgName"
	AttrContentAddress  Attribute = "contentAddress"
	AttrCommitTimestamp Attribute = "commitTimestamp"
)

// FieldAttributes lists the certificate's business fields in canonical order.
var FieldAttributes = []Attribute{AttrUID, AttrCandidateName, AttrCourseName, AttrOrgName}

// CertificateFields are the four business fields a certificate is issued for.
type CertificateFields struct {
	UID           string `json:"uid"`
	CandidateName string `json:"candidateName"`
	CourseName    string `json:"courseName"`
	OrgName       string `json:"orgName"`
}

// Get returns the value of a business attribute.
func (f CertificateFields) Get(attr Attribute) string {
	switch attr {
	case AttrUID:
		return f.UID
	case AttrCandidateName:
		return f.CandidateName
	case AttrCourseName:
		return f.CourseName
	case AttrOrgName:
		return f.OrgName
	default:
		return ""
	}
}

// Set assigns a business attribute. Unknown attributes are ignored.
func (f *CertificateFields) Set(attr Attribute, value string) {
	switch attr {
	case AttrUID:
		f.UID = value
	case AttrCandidateName:
		f.CandidateName = value
	case AttrCourseName:
		f.CourseName = value
	case AttrOrgName:
		f.OrgName = value
	}
}

// Missing returns the attributes that are empty after trimming, in canonical order.
func (f CertificateFields) Missing() []Attribute {
	var missing []Attribute
	for _, attr := range FieldAttributes {
		if strings.TrimSpace(f.Get(attr)) == "" {
			missing = append(missing, attr)
		}
	}
	return missing
}

// Validate fails with a MissingFieldsError when any attribute is blank.
func (f CertificateFields) Validate() error {
	if missing := f.Missing(); len(missing) > 0 {
		return &MissingFieldsError{Missing: missing}
	}
	return nil
}

// MissingFieldsError reports caller-supplied fields that were blank.
type MissingFieldsError struct {
	Missing []Attribute
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", JoinAttributes(e.Missing))
}

// ExtractionError reports attributes no line of a document matched.
type ExtractionError struct {
	Missing []Attribute
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("document missing required fields: %s", JoinAttributes(e.Missing))
}

// JoinAttributes renders attributes as a comma separated list.
func JoinAttributes(attrs []Attribute) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}
