// Package service sequences the certificate pipeline: extraction, identity
// derivation, ledger lookup and normalization, reconciliation, and content
// retrieval for verification; rendering, storage and ledger commit for issue.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"certvault/internal/certificate/extract"
	"certvault/internal/certificate/ledger"
	"certvault/internal/certificate/metrics"
	"certvault/internal/certificate/models"
	"certvault/internal/certificate/render"
	audit "certvault/pkg/platform/audit"
)

// Ledger is the authoritative record store.
type Ledger interface {
	Exists(ctx context.Context, id models.CertificateIdentity) (bool, error)
	Get(ctx context.Context, id models.CertificateIdentity) (ledger.RawRecord, error)
	Commit(ctx context.Context, id models.CertificateIdentity, fields models.CertificateFields, addr models.ContentAddress) (string, error)
}

// ContentStore uploads rendered documents.
type ContentStore interface {
	Put(ctx context.Context, doc []byte, name string) (models.ContentAddress, error)
}

// ContentFetcher retrieves documents by content address.
type ContentFetcher interface {
	Fetch(ctx context.Context, addr models.ContentAddress) ([]byte, error)
}

// FieldExtractor parses a rendered document back into fields.
type FieldExtractor interface {
	Extract(ctx context.Context, doc []byte) (models.CertificateFields, error)
}

// Renderer produces the document stored for an issued certificate.
type Renderer interface {
	ContentType() string
	Render(ctx context.Context, fields models.CertificateFields, issuedAt time.Time) ([]byte, error)
}

// MirrorQueue accepts best-effort copies of committed records.
type MirrorQueue interface {
	Enqueue(ctx context.Context, rec models.LedgerRecord) bool
}

// AuditPublisher records audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const (
	DefaultCallTimeout = 30 * time.Second
	tracerName         = "certvault/internal/certificate/service"

	workflowVerifyContent  = "verify_by_content"
	workflowVerifyIdentity = "verify_by_identity"
	workflowIssue          = "issue"
)

// Service is the certificate orchestrator. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	ledger    Ledger
	store     ContentStore
	fetcher   ContentFetcher
	extractor FieldExtractor
	renderer  Renderer
	mirror    MirrorQueue
	auditor   AuditPublisher

	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	callTimeout time.Duration
}

type Option func(*Service)

func WithExtractor(e FieldExtractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

func WithRenderer(r Renderer) Option {
	return func(s *Service) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithMirror enables the best-effort mirror write after issue.
func WithMirror(m MirrorQueue) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

func WithAuditor(a AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithCallTimeout bounds each ledger and content store call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

func New(ledger Ledger, store ContentStore, fetcher ContentFetcher, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("ledger client is required")
	}
	if store == nil {
		return nil, errors.New("content store is required")
	}
	if fetcher == nil {
		return nil, errors.New("content fetcher is required")
	}
	s := &Service{
		ledger:      ledger,
		store:       store,
		fetcher:     fetcher,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = extract.New(extract.WithLogger(s.logger))
	}
	if s.renderer == nil {
		s.renderer = render.PDFRenderer{}
	}
	return s, nil
}

// ContentType is the media type of stored documents.
func (s *Service) ContentType() string {
	return s.renderer.ContentType()
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"certificate_id", event.Subject,
			"error", err,
		)
	}
}
