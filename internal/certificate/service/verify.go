package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certvault/internal/certificate/gateway"
	"certvault/internal/certificate/ledger"
	"certvault/internal/certificate/models"
	"certvault/internal/certificate/reconcile"
	dErrors "certvault/pkg/domain-errors"
	"certvault/pkg/platform/audit"
	"certvault/pkg/platform/sentinel"
)

// VerifyByContent checks a rendered document against the ledger. The
// document's own content is never fetched from the content store.
//
// Negative results (not found, incomplete record, mismatch) are returned
// as outcomes with a nil error. Errors are reserved for caller faults
// (unreadable document) and an unreachable ledger.
func (s *Service) VerifyByContent(ctx context.Context, doc []byte) (models.VerificationOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.verify_by_content")
	defer span.End()

	fields, err := s.extract(ctx, doc)
	if err != nil {
		s.reject(ctx, workflowVerifyContent, "", "extraction_failure", err.Error())
		return models.VerificationOutcome{}, err
	}
	id, err := models.DeriveIdentity(fields)
	if err != nil {
		return models.VerificationOutcome{}, err
	}
	span.SetAttributes(attribute.String("certificate.id", string(id)))

	record, outcome, err := s.lookup(ctx, id)
	if err != nil || outcome != nil {
		return s.finish(ctx, workflowVerifyContent, outcome, err)
	}

	result := reconcile.Reconcile(fields, record.Fields)
	if !result.Consistent {
		o := models.Mismatch(id, record, result.Diffs)
		return s.finish(ctx, workflowVerifyContent, &o, nil)
	}
	o := models.Verified(record, nil)
	return s.finish(ctx, workflowVerifyContent, &o, nil)
}

// VerifyByIdentity looks up a certificate by its ID and retrieves its
// stored document through the gateways.
func (s *Service) VerifyByIdentity(ctx context.Context, rawID string) (models.VerificationOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.verify_by_identity")
	defer span.End()

	id, err := models.ParseIdentity(rawID)
	if err != nil {
		return models.VerificationOutcome{}, err
	}
	span.SetAttributes(attribute.String("certificate.id", string(id)))

	record, outcome, err := s.lookup(ctx, id)
	if err != nil || outcome != nil {
		return s.finish(ctx, workflowVerifyIdentity, outcome, err)
	}

	content, err := s.fetch(ctx, record.ContentAddress)
	if err != nil {
		if ctx.Err() != nil {
			return models.VerificationOutcome{}, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "request cancelled during content retrieval")
		}
		o := models.RetrievalFailed(id, retrievalCause(err))
		return s.finish(ctx, workflowVerifyIdentity, &o, nil)
	}
	o := models.Verified(record, content)
	return s.finish(ctx, workflowVerifyIdentity, &o, nil)
}

// lookup runs the shared existence, fetch and normalize stages. A non-nil
// outcome is a terminal negative result.
func (s *Service) lookup(ctx context.Context, id models.CertificateIdentity) (models.LedgerRecord, *models.VerificationOutcome, error) {
	exists, err := s.ledgerExists(ctx, id)
	if err != nil {
		return models.LedgerRecord{}, nil, err
	}
	if !exists {
		o := models.NotFound(id)
		return models.LedgerRecord{}, &o, nil
	}

	raw, err := s.ledgerGet(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		o := models.NotFound(id)
		return models.LedgerRecord{}, &o, nil
	}
	if err != nil {
		return models.LedgerRecord{}, nil, err
	}

	_, span := s.tracer.Start(ctx, "ledger.normalize")
	defer span.End()
	record, err := ledger.Normalize(id, raw)
	if err != nil {
		var incomplete *ledger.IncompleteRecordError
		if errors.As(err, &incomplete) {
			span.SetStatus(codes.Error, err.Error())
			s.logger.ErrorContext(ctx, "ledger returned incomplete record",
				"certificate_id", string(id),
				"missing", models.JoinAttributes(incomplete.Missing),
			)
			o := models.IncompleteRecord(id, incomplete.Missing)
			return models.LedgerRecord{}, &o, nil
		}
		return models.LedgerRecord{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to normalize ledger record")
	}
	return record, nil, nil
}

func (s *Service) extract(ctx context.Context, doc []byte) (models.CertificateFields, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.extract")
	defer span.End()
	fields, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return fields, err
}

func (s *Service) fetch(ctx context.Context, addr models.ContentAddress) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "content.fetch",
		trace.WithAttributes(attribute.String("content.address", string(addr))))
	defer span.End()
	content, err := s.fetcher.Fetch(ctx, addr)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return content, err
}

func (s *Service) ledgerExists(ctx context.Context, id models.CertificateIdentity) (bool, error) {
	ctx, cancel, end := s.ledgerCall(ctx, "exists")
	defer cancel()
	exists, err := s.ledger.Exists(ctx, id)
	end(err)
	if err != nil {
		return false, s.upstreamError(ctx, "exists", id, err)
	}
	return exists, nil
}

func (s *Service) ledgerGet(ctx context.Context, id models.CertificateIdentity) (ledger.RawRecord, error) {
	ctx, cancel, end := s.ledgerCall(ctx, "get")
	defer cancel()
	raw, err := s.ledger.Get(ctx, id)
	end(err)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ledger.RawRecord{}, err
	}
	if err != nil {
		return ledger.RawRecord{}, s.upstreamError(ctx, "get", id, err)
	}
	return raw, nil
}

// ledgerCall opens a span and a timeout for one ledger operation. end
// records latency and span status.
func (s *Service) ledgerCall(ctx context.Context, op string) (context.Context, context.CancelFunc, func(error)) {
	ctx, span := s.tracer.Start(ctx, "ledger."+op)
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	start := time.Now()
	return ctx, func() {
			cancel()
			span.End()
		}, func(err error) {
			s.metrics.ObserveLedgerCall(op, time.Since(start))
			if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				span.SetStatus(codes.Error, err.Error())
			}
		}
}

// upstreamError maps a ledger failure to the caller-visible upstream error.
func (s *Service) upstreamError(ctx context.Context, op string, id models.CertificateIdentity, err error) error {
	s.logger.ErrorContext(ctx, "ledger call failed",
		"operation", op,
		"certificate_id", string(id),
		"error", err,
	)
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger did not respond in time")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unavailable")
}

// finish records metrics and audit for a terminal outcome.
func (s *Service) finish(ctx context.Context, workflow string, o *models.VerificationOutcome, err error) (models.VerificationOutcome, error) {
	if err != nil {
		s.metrics.IncrementOutcome(workflow, outcomeLabel(err))
		return models.VerificationOutcome{}, err
	}
	s.metrics.IncrementOutcome(workflow, string(o.Kind))

	event := audit.Event{
		Subject:  string(o.Identity),
		Workflow: workflow,
		Decision: string(o.Kind),
		Reason:   o.Reason(),
	}
	switch o.Kind {
	case models.OutcomeVerified:
		event.Action = string(audit.EventCertificateVerified)
		s.logger.InfoContext(ctx, "certificate verified", "certificate_id", string(o.Identity), "workflow", workflow)
	case models.OutcomeNotFound:
		event.Action = string(audit.EventCertificateNotFound)
		s.logger.InfoContext(ctx, "certificate not found", "certificate_id", string(o.Identity), "workflow", workflow)
	default:
		event.Action = string(audit.EventCertificateRejected)
		s.logger.InfoContext(ctx, "certificate rejected",
			"certificate_id", string(o.Identity),
			"workflow", workflow,
			"outcome", string(o.Kind),
			"reason", o.Reason(),
		)
	}
	s.emit(ctx, event)
	return *o, nil
}

func (s *Service) reject(ctx context.Context, workflow string, id models.CertificateIdentity, label, reason string) {
	s.metrics.IncrementOutcome(workflow, label)
	s.emit(ctx, audit.Event{
		Subject:  string(id),
		Action:   string(audit.EventCertificateRejected),
		Workflow: workflow,
		Decision: label,
		Reason:   reason,
	})
}

func outcomeLabel(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return "invalid_input"
	case dErrors.CodeTimeout:
		return "upstream_timeout"
	case dErrors.CodeUnavailable:
		return "upstream_unavailable"
	default:
		return "error"
	}
}

func retrievalCause(err error) string {
	var exhausted *gateway.AllGatewaysFailedError
	switch {
	case errors.As(err, &exhausted):
		return exhausted.Error()
	case errors.Is(err, gateway.ErrInvalidContentAddress):
		return "ledger record holds an invalid content address"
	default:
		return err.Error()
	}
}
