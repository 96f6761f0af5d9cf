// Package mirror keeps an optional secondary copy of committed ledger
// records. The ledger stays the source of truth; mirror writes are best
// effort.
package mirror

import (
	"context"
	"time"

	"certvault/internal/certificate/models"
)

// Store persists mirror entries. Save of an identity already present is a
// no-op. Find returns sentinel.ErrNotFound for unknown identities.
type Store interface {
	Save(ctx context.Context, rec models.LedgerRecord) error
	Find(ctx context.Context, id models.CertificateIdentity) (*Entry, error)
}

// Entry is a mirrored record.
type Entry struct {
	CertificateID   string    `json:"certificateId"`
	UID             string    `json:"uid"`
	CandidateName   string    `json:"candidateName"`
	CourseName      string    `json:"courseName"`
	OrgName         string    `json:"orgName"`
	ContentAddress  string    `json:"contentAddress"`
	CommitTimestamp string    `json:"commitTimestamp"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newEntry(rec models.LedgerRecord, now time.Time) Entry {
	return Entry{
		CertificateID:   string(rec.Identity),
		UID:             rec.Fields.UID,
		CandidateName:   rec.Fields.CandidateName,
		CourseName:      rec.Fields.CourseName,
		OrgName:         rec.Fields.OrgName,
		ContentAddress:  string(rec.ContentAddress),
		CommitTimestamp: rec.CommitTimestamp,
		CreatedAt:       now,
	}
}

// Record converts an entry back into a ledger record.
func (e Entry) Record() models.LedgerRecord {
	return models.LedgerRecord{
		Identity: models.CertificateIdentity(e.CertificateID),
		Fields: models.CertificateFields{
			UID:           e.UID,
			CandidateName: e.CandidateName,
			CourseName:    e.CourseName,
			OrgName:       e.OrgName,
		},
		ContentAddress:  models.ContentAddress(e.ContentAddress),
		CommitTimestamp: e.CommitTimestamp,
	}
}
