package models

import (
	"strconv"
	"strings"
	"time"
)

// LedgerRecord is the authoritative committed record for one identity.
// CommitTimestamp is kept as the ledger rendered it; an empty value is a
// legitimate (if odd) record, not a missing one.
type LedgerRecord struct {
	Identity        CertificateIdentity `json:"certificateId"`
	Fields          CertificateFields   `json:"fields"`
	ContentAddress  ContentAddress      `json:"contentAddress"`
	CommitTimestamp string              `json:"commitTimestamp"`
}

// CommittedAt interprets CommitTimestamp as unix seconds.
func (r LedgerRecord) CommittedAt() (time.Time, bool) {
	secs, err := strconv.ParseInt(strings.TrimSpace(r.CommitTimestamp), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// FormatCommitTimestamp renders t the way ledgers report commit times.
func FormatCommitTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
