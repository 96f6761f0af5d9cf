// Package ethereum implements the ledger client against the Certification
// contract on an Ethereum-compatible chain.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"certvault/internal/certificate/ledger"
	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
)

// Backend is the subset of ethclient.Client the ledger uses.
type Backend interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg goethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg goethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Client talks to a deployed Certification contract.
type Client struct {
	backend      Backend
	contract     common.Address
	abi          abi.ABI
	chainID      *big.Int
	key          *ecdsa.PrivateKey
	from         common.Address
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithSigner sets the key used to sign generateCertificate transactions.
// Without a signer the client is read-only.
func WithSigner(key *ecdsa.PrivateKey, chainID *big.Int) Option {
	return func(c *Client) {
		c.key = key
		c.chainID = chainID
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
}

// WithReceiptPollInterval sets how often Commit polls for the mined receipt.
func WithReceiptPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New binds a Client to the contract at address.
func New(backend Backend, address string, opts ...Option) (*Client, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(certificationABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	c := &Client{
		backend:      backend,
		contract:     common.HexToAddress(address),
		abi:          parsed,
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParseSigningKey decodes a hex private key, with or without 0x.
func ParseSigningKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return key, nil
}

// Health fails when the node is unreachable or no contract is deployed at
// the configured address.
func (c *Client) Health(ctx context.Context) error {
	code, err := c.backend.CodeAt(ctx, c.contract, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no contract deployed at %s", c.contract.Hex())
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, id models.CertificateIdentity) (bool, error) {
	out, err := c.call(ctx, methodIsVerified, string(id))
	if err != nil {
		return false, err
	}
	values, err := c.abi.Unpack(methodIsVerified, out)
	if err != nil {
		return false, fmt.Errorf("unpack %s: %w", methodIsVerified, err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("unpack %s: expected 1 value, got %d", methodIsVerified, len(values))
	}
	verified, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unpack %s: unexpected type %T", methodIsVerified, values[0])
	}
	return verified, nil
}

// Get returns the named shape when the contract's outputs decode into a
// map, and the positional shape otherwise.
func (c *Client) Get(ctx context.Context, id models.CertificateIdentity) (ledger.RawRecord, error) {
	out, err := c.call(ctx, methodGetCertificate, string(id))
	if err != nil {
		return ledger.RawRecord{}, err
	}
	if len(out) == 0 {
		return ledger.RawRecord{}, sentinel.ErrNotFound
	}

	named := make(map[string]any)
	if err := c.abi.UnpackIntoMap(named, methodGetCertificate, out); err == nil && len(named) > 0 {
		return ledger.NamedRecord(named), nil
	}
	values, err := c.abi.Unpack(methodGetCertificate, out)
	if err != nil {
		return ledger.RawRecord{}, fmt.Errorf("unpack %s: %w", methodGetCertificate, err)
	}
	return ledger.PositionalRecord(values...), nil
}

// Commit sends generateCertificate and waits for the receipt. The block
// time of the mined receipt is the commit timestamp.
func (c *Client) Commit(ctx context.Context, id models.CertificateIdentity, f models.CertificateFields, addr models.ContentAddress) (string, error) {
	if c.key == nil {
		return "", errors.New("ethereum ledger has no signing key configured")
	}
	data, err := c.abi.Pack(methodGenerateCertificate, string(id), f.UID, f.CandidateName, f.CourseName, f.OrgName, string(addr))
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", methodGenerateCertificate, err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", unavailable("pending nonce", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", unavailable("suggest gas price", err)
	}
	gas, err := c.backend.EstimateGas(ctx, goethereum.CallMsg{From: c.from, To: &c.contract, Data: data})
	if err != nil {
		// Estimation reverts when the identity is already committed.
		if isRevert(err) {
			return "", fmt.Errorf("%w: estimate gas: %v", sentinel.ErrConflict, err)
		}
		return "", unavailable("estimate gas", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", unavailable("send transaction", err)
	}

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return "", err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("%w: transaction %s reverted", sentinel.ErrConflict, signed.Hash().Hex())
	}

	header, err := c.backend.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return "", unavailable("block header", err)
	}
	if c.logger != nil {
		c.logger.InfoContext(ctx, "certificate committed to chain",
			"certificate_id", string(id),
			"tx_hash", signed.Hash().Hex(),
			"block", receipt.BlockNumber.String(),
			"gas_used", receipt.GasUsed,
		)
	}
	return models.FormatCommitTimestamp(time.Unix(int64(header.Time), 0)), nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, goethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, unavailable(method, err)
	}
	return out, nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, goethereum.NotFound) {
			return nil, unavailable("transaction receipt", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// isRevert reports whether a node rejected a call because the contract
// reverted, as opposed to the node being unreachable or overloaded.
func isRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", sentinel.ErrUnavailable, op, err)
}
