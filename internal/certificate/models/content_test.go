package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certvault/pkg/domain-errors"
)

func TestParseContentAddress(t *testing.T) {
	t.Run("accepts CIDv0", func(t *testing.T) {
		addr, err := ParseContentAddress("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
		require.NoError(t, err)
		assert.True(t, addr.HasStorePrefix())
	})

	t.Run("rejects wrong prefix", func(t *testing.T) {
		_, err := ParseContentAddress("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects prefix-only garbage", func(t *testing.T) {
		_, err := ParseContentAddress("Qm-not-a-cid")
		require.Error(t, err)
	})
}

func TestOutcomeReason(t *testing.T) {
	id := CertificateIdentity("abc")
	assert.Equal(t, "ledger record incomplete: missing commitTimestamp",
		IncompleteRecord(id, []Attribute{AttrCommitTimestamp}).Reason())
	assert.Equal(t, "document does not match ledger record: candidateName",
		Mismatch(id, LedgerRecord{}, []FieldDiff{{Attribute: AttrCandidateName}}).Reason())
	assert.False(t, NotFound(id).IsVerified())
	assert.True(t, Verified(LedgerRecord{Identity: id}, nil).IsVerified())
}

func TestCommittedAt(t *testing.T) {
	r := LedgerRecord{CommitTimestamp: "1700000000"}
	at, ok := r.CommittedAt()
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), at.Unix())
	assert.Equal(t, "1700000000", FormatCommitTimestamp(at))

	_, ok = LedgerRecord{CommitTimestamp: ""}.CommittedAt()
	assert.False(t, ok)
}
