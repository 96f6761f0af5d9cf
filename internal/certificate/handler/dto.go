package handler

import (
	"certvault/internal/certificate/models"
)

// IssueRequest is the body of POST /certificates.
type IssueRequest struct {
	UID           string `json:"uid"`
	CandidateName string `json:"candidateName"`
	CourseName    string `json:"courseName"`
	OrgName       string `json:"orgName"`
}

func (r IssueRequest) Fields() models.CertificateFields {
	return models.CertificateFields{
		UID:           r.UID,
		CandidateName: r.CandidateName,
		CourseName:    r.CourseName,
		OrgName:       r.OrgName,
	}
}

// CertificateResponse describes a committed certificate. It is also the
// X-Certificate-Metadata header value on document downloads.
type CertificateResponse struct {
	CertificateID   string `json:"certificateId"`
	UID             string `json:"uid"`
	CandidateName   string `json:"candidateName"`
	CourseName      string `json:"courseName"`
	OrgName         string `json:"orgName"`
	ContentAddress  string `json:"contentAddress"`
	CommitTimestamp string `json:"commitTimestamp"`
}

// IssueResponse is returned with 201 Created.
type IssueResponse struct {
	CertificateResponse
	MirrorQueued bool `json:"mirrorQueued"`
}

// VerificationResponse carries the outcome of a verification.
type VerificationResponse struct {
	Verified      bool                 `json:"verified"`
	Outcome       string               `json:"outcome"`
	CertificateID string               `json:"certificateId,omitempty"`
	Reason        string               `json:"reason"`
	Certificate   *CertificateResponse `json:"certificate,omitempty"`
	Missing       []string             `json:"missing,omitempty"`
	Diffs         []models.FieldDiff   `json:"diffs,omitempty"`
}

func toCertificateResponse(rec models.LedgerRecord) CertificateResponse {
	return CertificateResponse{
		CertificateID:   string(rec.Identity),
		UID:             rec.Fields.UID,
		CandidateName:   rec.Fields.CandidateName,
		CourseName:      rec.Fields.CourseName,
		OrgName:         rec.Fields.OrgName,
		ContentAddress:  string(rec.ContentAddress),
		CommitTimestamp: rec.CommitTimestamp,
	}
}

func toVerificationResponse(o models.VerificationOutcome) VerificationResponse {
	resp := VerificationResponse{
		Verified:      o.IsVerified(),
		Outcome:       string(o.Kind),
		CertificateID: string(o.Identity),
		Reason:        o.Reason(),
		Diffs:         o.Diffs,
	}
	if o.Record != nil {
		cert := toCertificateResponse(*o.Record)
		resp.Certificate = &cert
	}
	for _, attr := range o.Missing {
		resp.Missing = append(resp.Missing, string(attr))
	}
	return resp
}
