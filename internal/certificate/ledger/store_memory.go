package ledger

import (
	"context"
	"sync"
	"time"

	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
)

// Shape selects the response encoding the in-memory ledger returns.
type Shape int

const (
	ShapePositional Shape = iota
	ShapeNamed
)

// InMemoryLedger is a commit-confirmed ledger for development and tests.
type InMemoryLedger struct {
	mu      sync.RWMutex
	records map[models.CertificateIdentity]models.LedgerRecord
	shape   Shape
	now     func() time.Time
}

// MemoryOption configures an InMemoryLedger.
type MemoryOption func(*InMemoryLedger)

// WithShape selects the response shape returned by Get.
func WithShape(shape Shape) MemoryOption {
	return func(l *InMemoryLedger) {
		l.shape = shape
	}
}

// WithClock overrides the commit clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *InMemoryLedger) {
		l.now = now
	}
}

func NewInMemoryLedger(opts ...MemoryOption) *InMemoryLedger {
	l := &InMemoryLedger{
		records: make(map[models.CertificateIdentity]models.LedgerRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *InMemoryLedger) Exists(ctx context.Context, id models.CertificateIdentity) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[id]
	return ok, nil
}

func (l *InMemoryLedger) Get(ctx context.Context, id models.CertificateIdentity) (RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return RawRecord{}, err
	}
	l.mu.RLock()
	rec, ok := l.records[id]
	l.mu.RUnlock()
	if !ok {
		return RawRecord{}, sentinel.ErrNotFound
	}
	if l.shape == ShapeNamed {
		return NamedRecord(map[string]any{
			"uid":           rec.Fields.UID,
			"candidateName": rec.Fields.CandidateName,
			"courseName":    rec.Fields.CourseName,
			"orgName":       rec.Fields.OrgName,
			"ipfsHash":      string(rec.ContentAddress),
			"timestamp":     rec.CommitTimestamp,
		}), nil
	}
	return PositionalRecord(
		rec.Fields.UID,
		rec.Fields.CandidateName,
		rec.Fields.CourseName,
		rec.Fields.OrgName,
		string(rec.ContentAddress),
		rec.CommitTimestamp,
	), nil
}

func (l *InMemoryLedger) Commit(ctx context.Context, id models.CertificateIdentity, fields models.CertificateFields, addr models.ContentAddress) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.records[id]; ok {
		if existing.Fields != fields || existing.ContentAddress != addr {
			return "", sentinel.ErrConflict
		}
		return existing.CommitTimestamp, nil
	}
	ts := models.FormatCommitTimestamp(l.now())
	l.records[id] = models.LedgerRecord{
		Identity:        id,
		Fields:          fields,
		ContentAddress:  addr,
		CommitTimestamp: ts,
	}
	return ts, nil
}

// Put stores a raw record as-is, bypassing commit checks. Used to seed
// fixtures, including malformed ones.
func (l *InMemoryLedger) Put(rec models.LedgerRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.Identity] = rec
}
