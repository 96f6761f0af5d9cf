package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	dErrors "certvault/pkg/domain-errors"
)

// IdentityHexLen is the length of a rendered CertificateIdentity. Both
// DeriveIdentity's output and ParseIdentity's input check use it.
const IdentityHexLen = sha256.Size * 2

// identityDelimiter joins normalized fields before hashing. Changing it
// changes every identity ever issued.
const identityDelimiter = "|"

// CertificateIdentity is the lowercase hex SHA-256 fingerprint of a
// certificate's normalized fields. It is the ledger key and the public
// certificate ID.
type CertificateIdentity string

func (id CertificateIdentity) String() string { return string(id) }

// DeriveIdentity hashes uid (trimmed, case kept) with the trimmed and
// lowercased candidate, course and org names.
func DeriveIdentity(f CertificateFields) (CertificateIdentity, error) {
	if missing := f.Missing(); len(missing) > 0 {
		return "", dErrors.Wrap(&MissingFieldsError{Missing: missing}, dErrors.CodeInvalidInput,
			"missing required fields: "+JoinAttributes(missing))
	}
	normalized := strings.Join([]string{
		strings.TrimSpace(f.UID),
		normalizeName(f.CandidateName),
		normalizeName(f.CourseName),
		normalizeName(f.OrgName),
	}, identityDelimiter)

	sum := sha256.Sum256([]byte(normalized))
	return CertificateIdentity(hex.EncodeToString(sum[:])), nil
}

// ParseIdentity validates a caller-supplied identity. Upper-case hex is
// accepted and folded to the canonical lowercase form.
func ParseIdentity(raw string) (CertificateIdentity, error) {
	s := strings.TrimSpace(raw)
	if len(s) != IdentityHexLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "certificate ID must be a 64-character hexadecimal string")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "certificate ID must be a 64-character hexadecimal string")
	}
	return CertificateIdentity(strings.ToLower(s)), nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
