package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certvault/internal/certificate/models"
	dErrors "certvault/pkg/domain-errors"
	"certvault/pkg/platform/httputil"
	"certvault/pkg/platform/middleware/request"
)

// Service defines the certificate operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, fields models.CertificateFields) (models.IssueResult, error)
	VerifyByContent(ctx context.Context, doc []byte) (models.VerificationOutcome, error)
	VerifyByIdentity(ctx context.Context, rawID string) (models.VerificationOutcome, error)
}

const (
	// DefaultMaxUploadBytes bounds documents submitted for verification.
	DefaultMaxUploadBytes = 10 << 20

	HeaderCertificateMetadata = "X-Certificate-Metadata"
	uploadField               = "file"
)

// Handler serves the certificate endpoints.
type Handler struct {
	svc        Service
	logger     *slog.Logger
	issuerAuth func(http.Handler) http.Handler
	maxUpload  int64
}

// New creates a certificate Handler. issuerAuth guards the issue route.
func New(svc Service, logger *slog.Logger, issuerAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		svc:        svc,
		logger:     logger,
		issuerAuth: issuerAuth,
		maxUpload:  DefaultMaxUploadBytes,
	}
}

// Register registers the certificate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/certificates", func(r chi.Router) {
		if h.issuerAuth != nil {
			r.With(h.issuerAuth).Post("/", h.handleIssue)
		} else {
			r.Post("/", h.handleIssue)
		}
		r.Post("/verify", h.handleVerifyByContent)
		r.Get("/{id}", h.handleGetCertificate)
		r.Get("/{id}/verification", h.handleVerifyByIdentity)
	})
}

// handleIssue issues a certificate for the authenticated issuer.
func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[IssueRequest](w, r)
	if !ok {
		return
	}

	result, err := h.svc.Issue(ctx, req.Fields())
	if err != nil {
		h.writeError(ctx, w, "issue", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, IssueResponse{
		CertificateResponse: toCertificateResponse(result.Record),
		MirrorQueued:        result.MirrorQueued,
	})
}

// handleVerifyByContent verifies an uploaded document, sent either as the
// multipart field "file" or as the raw request body.
func (h *Handler) handleVerifyByContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.readDocument(w, r)
	if err != nil {
		h.writeError(ctx, w, "verify_by_content", err)
		return
	}

	outcome, err := h.svc.VerifyByContent(ctx, doc)
	if err != nil {
		h.writeError(ctx, w, "verify_by_content", err)
		return
	}
	httputil.WriteJSON(w, statusForOutcome(outcome.Kind), toVerificationResponse(outcome))
}

// handleVerifyByIdentity reports the verification outcome as JSON without
// the document bytes.
func (h *Handler) handleVerifyByIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	outcome, err := h.svc.VerifyByIdentity(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "verify_by_identity", err)
		return
	}
	httputil.WriteJSON(w, statusForOutcome(outcome.Kind), toVerificationResponse(outcome))
}

// handleGetCertificate returns the stored document inline, with the ledger
// record in the X-Certificate-Metadata header.
func (h *Handler) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	outcome, err := h.svc.VerifyByIdentity(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, "verify_by_identity", err)
		return
	}
	if !outcome.IsVerified() {
		httputil.WriteJSON(w, statusForOutcome(outcome.Kind), toVerificationResponse(outcome))
		return
	}

	metadata, err := json.Marshal(toCertificateResponse(*outcome.Record))
	if err != nil {
		h.writeError(ctx, w, "verify_by_identity", err)
		return
	}
	contentType, ext := documentType(outcome.Content)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", string(outcome.Identity)+ext))
	w.Header().Set(HeaderCertificateMetadata, string(metadata))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(outcome.Content)
}

func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, h.maxUpload)
	var src io.Reader = body

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = body
		file, _, err := r.FormFile(uploadField)
		if err != nil {
			return nil, uploadError(err, "multipart field \"file\" is required")
		}
		defer file.Close()
		src = file
	}

	doc, err := io.ReadAll(src)
	if err != nil {
		return nil, uploadError(err, "failed to read document")
	}
	if len(doc) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document is empty")
	}
	return doc, nil
}

func uploadError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return dErrors.New(dErrors.CodeBadRequest, "document exceeds upload limit")
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, msg)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "certificate request failed",
			"operation", op,
			"code", string(code),
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
	} else {
		h.logger.InfoContext(ctx, "certificate request rejected",
			"operation", op,
			"code", string(code),
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
	}
	resp := httputil.NewErrorResponse(err)
	resp.Missing = missingAttributes(err)
	httputil.WriteJSON(w, httputil.StatusFor(code), resp)
}

// missingAttributes lists the attributes a validation or extraction failure
// named, so clients need not parse the description.
func missingAttributes(err error) []string {
	var missing []models.Attribute
	var extraction *models.ExtractionError
	var fields *models.MissingFieldsError
	switch {
	case errors.As(err, &extraction):
		missing = extraction.Missing
	case errors.As(err, &fields):
		missing = fields.Missing
	default:
		return nil
	}
	out := make([]string, len(missing))
	for i, a := range missing {
		out[i] = string(a)
	}
	return out
}

// statusForOutcome maps each outcome to one HTTP status.
func statusForOutcome(kind models.OutcomeKind) int {
	switch kind {
	case models.OutcomeVerified:
		return http.StatusOK
	case models.OutcomeNotFound:
		return http.StatusNotFound
	case models.OutcomeMismatch:
		return http.StatusConflict
	case models.OutcomeRetrievalFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var pdfMagic = []byte("%PDF-")

func documentType(doc []byte) (contentType, ext string) {
	if bytes.HasPrefix(doc, pdfMagic) {
		return "application/pdf", ".pdf"
	}
	return http.DetectContentType(doc), ".txt"
}
