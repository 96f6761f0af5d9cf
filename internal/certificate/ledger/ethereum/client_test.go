package ethereum

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"certvault/internal/certificate/ledger"
	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
)

const contractAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// fakeChain answers contract calls by ABI-encoding an in-memory map, the
// way a deployed Certification contract would.
type fakeChain struct {
	mu        sync.Mutex
	abi       abi.ABI
	certs     map[string][]any
	pending   map[common.Hash]*types.Transaction
	polls     int
	callErr   error
	blockTime uint64
	revert    bool
	gasErr    error
}

func newFakeChain(t *testing.T) *fakeChain {
	parsed, err := abi.JSON(strings.NewReader(certificationABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return &fakeChain{
		abi:       parsed,
		certs:     make(map[string][]any),
		pending:   make(map[common.Hash]*types.Transaction),
		blockTime: 1700000000,
	}
}

func (f *fakeChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, f.callErr
}

func (f *fakeChain) CallContract(_ context.Context, msg goethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	method, err := f.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	id := args[0].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	cert, ok := f.certs[id]
	switch method.Name {
	case methodIsVerified:
		return method.Outputs.Pack(ok)
	case methodGetCertificate:
		if !ok {
			return nil, nil
		}
		return method.Outputs.Pack(cert...)
	}
	return nil, errors.New("unexpected method " + method.Name)
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 3, nil }
func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error)               { return big.NewInt(20e9), nil }

func (f *fakeChain) EstimateGas(_ context.Context, msg goethereum.CallMsg) (uint64, error) {
	args, err := f.abi.Methods[methodGenerateCertificate].Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gasErr != nil {
		return 0, f.gasErr
	}
	if _, ok := f.certs[args[0].(string)]; ok {
		return 0, errors.New("execution reverted: certificate already exists")
	}
	return 210000, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[tx.Hash()] = tx
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.polls == 1 {
		return nil, goethereum.NotFound
	}
	tx, ok := f.pending[hash]
	if !ok {
		return nil, goethereum.NotFound
	}
	if f.revert {
		return &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(7)}, nil
	}
	args, err := f.abi.Methods[methodGenerateCertificate].Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return nil, err
	}
	ts := big.NewInt(int64(f.blockTime)).String()
	f.certs[args[0].(string)] = []any{args[1], args[2], args[3], args[4], args[5], ts}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7), GasUsed: 90000}, nil
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(7), Time: f.blockTime}, nil
}

type ClientSuite struct {
	suite.Suite
	ctx    context.Context
	chain  *fakeChain
	client *Client
	id     models.CertificateIdentity
	fields models.CertificateFields
	addr   models.ContentAddress
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx = context.Background()
	s.chain = newFakeChain(s.T())

	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.client, err = New(s.chain, contractAddr,
		WithSigner(key, big.NewInt(1337)),
		WithReceiptPollInterval(time.Millisecond),
	)
	s.Require().NoError(err)

	s.fields = models.CertificateFields{UID: "C-1", CandidateName: "Ada Lovelace", CourseName: "Algorithms", OrgName: "Acme Academy"}
	s.id, err = models.DeriveIdentity(s.fields)
	s.Require().NoError(err)
	s.addr = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
}

func (s *ClientSuite) TestNewRejectsBadAddress() {
	_, err := New(s.chain, "not-an-address")
	s.Error(err)
}

func (s *ClientSuite) TestCommitThenRead() {
	ts, err := s.client.Commit(s.ctx, s.id, s.fields, s.addr)
	s.Require().NoError(err)
	s.Equal("1700000000", ts)

	exists, err := s.client.Exists(s.ctx, s.id)
	s.Require().NoError(err)
	s.True(exists)

	raw, err := s.client.Get(s.ctx, s.id)
	s.Require().NoError(err)
	s.NotNil(raw.Named, "named outputs decode into the named shape")

	rec, err := ledger.Normalize(s.id, raw)
	s.Require().NoError(err)
	s.Equal(s.fields, rec.Fields)
	s.Equal(s.addr, rec.ContentAddress)
	s.Equal("1700000000", rec.CommitTimestamp)
}

func (s *ClientSuite) TestExistsUnknown() {
	exists, err := s.client.Exists(s.ctx, s.id)
	s.Require().NoError(err)
	s.False(exists)
}

func (s *ClientSuite) TestDuplicateCommitConflicts() {
	_, err := s.client.Commit(s.ctx, s.id, s.fields, s.addr)
	s.Require().NoError(err)

	_, err = s.client.Commit(s.ctx, s.id, s.fields, s.addr)
	s.ErrorIs(err, sentinel.ErrConflict)
}

// revertError mirrors the JSON-RPC error a node returns with revert data.
type revertError struct{ data string }

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorCode() int         { return 3 }
func (e revertError) ErrorData() interface{} { return e.data }

func (s *ClientSuite) TestEstimateGasFailures() {
	tests := []struct {
		name     string
		err      error
		conflict bool
		timeout  bool
	}{
		{name: "node unreachable", err: errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")},
		{name: "rpc data error", err: revertError{data: "0x08c379a0"}, conflict: true},
		{name: "revert message", err: errors.New("execution reverted: certificate already exists"), conflict: true},
		{name: "deadline", err: context.DeadlineExceeded, timeout: true},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.chain.gasErr = tt.err
			defer func() { s.chain.gasErr = nil }()

			_, err := s.client.Commit(s.ctx, s.id, s.fields, s.addr)
			s.Require().Error(err)
			switch {
			case tt.conflict:
				s.ErrorIs(err, sentinel.ErrConflict)
				s.NotErrorIs(err, sentinel.ErrUnavailable)
			case tt.timeout:
				s.ErrorIs(err, context.DeadlineExceeded)
				s.NotErrorIs(err, sentinel.ErrConflict)
			default:
				s.ErrorIs(err, sentinel.ErrUnavailable)
				s.NotErrorIs(err, sentinel.ErrConflict)
			}
		})
	}
}

func (s *ClientSuite) TestRevertedCommit() {
	s.chain.revert = true
	_, err := s.client.Commit(s.ctx, s.id, s.fields, s.addr)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *ClientSuite) TestUnreachableNode() {
	s.chain.callErr = errors.New("dial tcp 127.0.0.1:8545: connection refused")

	_, err := s.client.Exists(s.ctx, s.id)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.ErrorIs(s.client.Health(s.ctx), sentinel.ErrUnavailable)
}

func (s *ClientSuite) TestReadOnlyClientCannotCommit() {
	ro, err := New(s.chain, contractAddr)
	s.Require().NoError(err)
	_, err = ro.Commit(s.ctx, s.id, s.fields, s.addr)
	s.Error(err)
}

func (s *ClientSuite) TestParseSigningKey() {
	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	parsed, err := ParseSigningKey(hexKey)
	s.Require().NoError(err)
	s.Equal(crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(parsed.PublicKey))

	_, err = ParseSigningKey("zz")
	s.Error(err)
}
