package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"certvault/internal/certificate/mirror"
	"certvault/internal/certificate/models"
	"certvault/internal/certificate/render"
	dErrors "certvault/pkg/domain-errors"
	"certvault/pkg/platform/audit"
	"certvault/pkg/platform/sentinel"
	"certvault/pkg/requestcontext"
)

// Issue validates fields, renders and stores the certificate document, then
// commits the record to the ledger. Nothing is committed before the final
// ledger call, so a failure at any earlier stage leaves no ledger state.
// The mirror write that follows a successful commit never fails the issue.
func (s *Service) Issue(ctx context.Context, fields models.CertificateFields) (models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.issue")
	defer span.End()

	fields = trimFields(fields)
	id, err := models.DeriveIdentity(fields)
	if err != nil {
		s.metrics.IncrementOutcome(workflowIssue, "invalid_input")
		return models.IssueResult{}, err
	}
	span.SetAttributes(attribute.String("certificate.id", string(id)))

	if c, ok := s.renderer.(fieldChecker); ok {
		if err := c.Check(fields); err != nil {
			s.metrics.IncrementOutcome(workflowIssue, "invalid_input")
			return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error())
		}
	}

	exists, err := s.ledgerExists(ctx, id)
	if err != nil {
		s.metrics.IncrementOutcome(workflowIssue, outcomeLabel(err))
		return models.IssueResult{}, err
	}
	if exists {
		s.metrics.IncrementOutcome(workflowIssue, "conflict")
		return models.IssueResult{}, dErrors.New(dErrors.CodeConflict, "certificate already issued: "+string(id))
	}

	doc, err := s.render(ctx, fields)
	if err != nil {
		s.metrics.IncrementOutcome(workflowIssue, outcomeLabel(err))
		return models.IssueResult{}, err
	}

	addr, err := s.put(ctx, doc, string(id))
	if err != nil {
		s.metrics.IncrementOutcome(workflowIssue, outcomeLabel(err))
		return models.IssueResult{}, err
	}

	timestamp, err := s.commit(ctx, id, fields, addr)
	if err != nil {
		s.metrics.IncrementOutcome(workflowIssue, outcomeLabel(err))
		return models.IssueResult{}, err
	}

	record := models.LedgerRecord{
		Identity:        id,
		Fields:          fields,
		ContentAddress:  addr,
		CommitTimestamp: timestamp,
	}
	result := models.IssueResult{Record: record}
	if s.mirror != nil {
		result.MirrorQueued = s.mirror.Enqueue(ctx, record)
	}

	s.metrics.IncrementIssued()
	s.metrics.IncrementOutcome(workflowIssue, "issued")
	s.logger.InfoContext(ctx, "certificate issued",
		"certificate_id", string(id),
		"content_address", string(addr),
		"issuer", requestcontext.Issuer(ctx),
		"mirror_queued", result.MirrorQueued,
	)
	s.emit(ctx, audit.Event{
		Subject:  string(id),
		Action:   string(audit.EventCertificateIssued),
		Workflow: workflowIssue,
		Decision: "issued",
	})
	return result, nil
}

func (s *Service) render(ctx context.Context, fields models.CertificateFields) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.render")
	defer span.End()
	doc, err := s.renderer.Render(ctx, fields, requestcontext.Now(ctx))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		var unsupported *render.UnsupportedTextError
		if errors.As(err, &unsupported) {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render certificate")
	}
	return doc, nil
}

// fieldChecker is implemented by renderers that cannot write every string.
// Issue consults it before touching the ledger.
type fieldChecker interface {
	Check(fields models.CertificateFields) error
}

func (s *Service) put(ctx context.Context, doc []byte, name string) (models.ContentAddress, error) {
	ctx, span := s.tracer.Start(ctx, "content.put")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	addr, err := s.store.Put(ctx, doc, name)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "content upload failed", "certificate_id", name, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", dErrors.Wrap(err, dErrors.CodeTimeout, "content store did not respond in time")
		}
		if errors.Is(err, sentinel.ErrUnavailable) {
			return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "content store unavailable")
		}
		return "", dErrors.Wrap(err, dErrors.CodeBadGateway, "content store rejected the upload")
	}
	if !addr.HasStorePrefix() {
		return "", dErrors.New(dErrors.CodeBadGateway, "content store returned an invalid address")
	}
	return addr, nil
}

func (s *Service) commit(ctx context.Context, id models.CertificateIdentity, fields models.CertificateFields, addr models.ContentAddress) (string, error) {
	ctx, cancel, end := s.ledgerCall(ctx, "commit")
	defer cancel()
	timestamp, err := s.ledger.Commit(ctx, id, fields, addr)
	end(err)
	if errors.Is(err, sentinel.ErrConflict) {
		return "", dErrors.Wrap(err, dErrors.CodeConflict, "ledger already holds a different record for "+string(id))
	}
	if err != nil {
		return "", s.upstreamError(ctx, "commit", id, err)
	}
	return timestamp, nil
}

func trimFields(f models.CertificateFields) models.CertificateFields {
	return models.CertificateFields{
		UID:           strings.TrimSpace(f.UID),
		CandidateName: strings.TrimSpace(f.CandidateName),
		CourseName:    strings.TrimSpace(f.CourseName),
		OrgName:       strings.TrimSpace(f.OrgName),
	}
}

// MirrorFailureHook turns mirror write failures into audit events.
func MirrorFailureHook(auditor AuditPublisher) mirror.FailureHook {
	return func(ctx context.Context, rec models.LedgerRecord, err error) {
		reason := "save_failed"
		if errors.Is(err, sentinel.ErrQueueFull) {
			reason = "queue_full"
		}
		if auditor == nil {
			return
		}
		_ = auditor.Emit(ctx, audit.Event{
			Subject:  string(rec.Identity),
			Action:   string(audit.EventMirrorWriteFailed),
			Workflow: workflowIssue,
			Decision: reason,
			Reason:   err.Error(),
		})
	}
}
