// Package ledger defines the client contract for the authoritative
// certificate ledger and normalizes its loosely-shaped responses.
package ledger

import (
	"context"

	"certvault/internal/certificate/models"
)

// Client is the ledger collaborator.
//
// Get returns sentinel.ErrNotFound for unknown identities. Commit returns
// the commit timestamp; committing an identity that already exists with
// different fields returns sentinel.ErrConflict. Re-committing the same
// fields is either idempotent or rejected with sentinel.ErrConflict,
// depending on the backend: the Ethereum contract reverts, the memory
// ledger accepts. Unreachable ledgers surface as sentinel.ErrUnavailable.
type Client interface {
	Exists(ctx context.Context, id models.CertificateIdentity) (bool, error)
	Get(ctx context.Context, id models.CertificateIdentity) (RawRecord, error)
	Commit(ctx context.Context, id models.CertificateIdentity, fields models.CertificateFields, addr models.ContentAddress) (string, error)
}

// RawRecord is a ledger response before normalization. Ledger encodings
// return either an ordered value list or a map of named values; exactly
// one of Positional or Named is set. Absent values are nil or missing keys.
type RawRecord struct {
	Positional []any
	Named      map[string]any
}

// PositionalRecord builds a RawRecord from ordered values.
func PositionalRecord(values ...any) RawRecord {
	return RawRecord{Positional: values}
}

// NamedRecord builds a RawRecord from named values.
func NamedRecord(values map[string]any) RawRecord {
	return RawRecord{Named: values}
}
