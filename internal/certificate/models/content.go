package models

import (
	"strings"

	"github.com/ipfs/go-cid"

	dErrors "certvault/pkg/domain-errors"
)

// ContentAddressPrefix is the prefix every address issued by the content
// store carries (base58 CIDv0).
const ContentAddressPrefix = "Qm"

// ContentAddress identifies a rendered document in the content store.
type ContentAddress string

func (a ContentAddress) String() string { return string(a) }

// HasStorePrefix is the cheap pre-network sanity check.
func (a ContentAddress) HasStorePrefix() bool {
	return strings.HasPrefix(string(a), ContentAddressPrefix)
}

// ParseContentAddress checks the prefix and decodes the address as a CID.
func ParseContentAddress(raw string) (ContentAddress, error) {
	addr := ContentAddress(strings.TrimSpace(raw))
	if !addr.HasStorePrefix() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "content address must start with "+ContentAddressPrefix)
	}
	if _, err := cid.Decode(string(addr)); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "content address is not a valid CID")
	}
	return addr, nil
}
