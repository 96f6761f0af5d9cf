package models

import "fmt"

// OutcomeKind tags a VerificationOutcome.
type OutcomeKind string

const (
	OutcomeVerified         OutcomeKind = "verified"
	OutcomeNotFound         OutcomeKind = "not_found"
	OutcomeIncompleteRecord OutcomeKind = "incomplete_record"
	OutcomeMismatch         OutcomeKind = "mismatch"
	OutcomeRetrievalFailed  OutcomeKind = "retrieval_failed"
)

// FieldDiff is one attribute that disagreed during reconciliation.
type FieldDiff struct {
	Attribute     Attribute `json:"attribute"`
	Candidate     string    `json:"candidate"`
	Authoritative string    `json:"authoritative"`
}

// VerificationOutcome is the result of one verification attempt. Only the
// fields relevant to Kind are populated.
type VerificationOutcome struct {
	Kind     OutcomeKind
	Identity CertificateIdentity
	Record   *LedgerRecord
	Content  []byte
	Missing  []Attribute
	Diffs    []FieldDiff
	Cause    string
}

func Verified(record LedgerRecord, content []byte) VerificationOutcome {
	return VerificationOutcome{Kind: OutcomeVerified, Identity: record.Identity, Record: &record, Content: content}
}

func NotFound(id CertificateIdentity) VerificationOutcome {
	return VerificationOutcome{Kind: OutcomeNotFound, Identity: id}
}

func IncompleteRecord(id CertificateIdentity, missing []Attribute) VerificationOutcome {
	return VerificationOutcome{Kind: OutcomeIncompleteRecord, Identity: id, Missing: missing}
}

func Mismatch(id CertificateIdentity, record LedgerRecord, diffs []FieldDiff) VerificationOutcome {
	return VerificationOutcome{Kind: OutcomeMismatch, Identity: id, Record: &record, Diffs: diffs}
}

func RetrievalFailed(id CertificateIdentity, cause string) VerificationOutcome {
	return VerificationOutcome{Kind: OutcomeRetrievalFailed, Identity: id, Cause: cause}
}

// IsVerified reports whether the outcome is a success.
func (o VerificationOutcome) IsVerified() bool {
	return o.Kind == OutcomeVerified
}

// Reason is a human-readable explanation of the outcome.
func (o VerificationOutcome) Reason() string {
	switch o.Kind {
	case OutcomeVerified:
		return "certificate verified"
	case OutcomeNotFound:
		return "certificate not found on ledger"
	case OutcomeIncompleteRecord:
		return fmt.Sprintf("ledger record incomplete: missing %s", JoinAttributes(o.Missing))
	case OutcomeMismatch:
		attrs := make([]Attribute, len(o.Diffs))
		for i, d := range o.Diffs {
			attrs[i] = d.Attribute
		}
		return fmt.Sprintf("document does not match ledger record: %s", JoinAttributes(attrs))
	case OutcomeRetrievalFailed:
		return "content retrieval failed: " + o.Cause
	default:
		return string(o.Kind)
	}
}

// IssueResult is the success value of the issue workflow.
type IssueResult struct {
	Record LedgerRecord
	// MirrorQueued is false when the best-effort mirror write could not even be enqueued.
	MirrorQueued bool
}
