package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certvault/internal/certificate/handler"
	"certvault/internal/certificate/models"
	dErrors "certvault/pkg/domain-errors"
	"certvault/pkg/platform/httputil"
	"certvault/pkg/platform/middleware/auth"
	"certvault/pkg/platform/middleware/metadata"
	"certvault/pkg/platform/middleware/request"
	"certvault/pkg/platform/middleware/requesttime"
	"certvault/pkg/platform/sentinel"
)

const healthTimeout = 3 * time.Second

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(a.logger))
	r.Use(request.Logger(a.logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(a.http.Middleware)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	if a.content != nil {
		r.Handle("/ipfs/*", a.content)
	}

	requireIssuer := auth.RequireIssuer(a.tokens, a.logger)
	if a.mirror != nil {
		r.With(requireIssuer).Get("/mirror/{id}", a.handleMirrorEntry)
	}

	h := handler.New(a.service, a.logger, requireIssuer)
	h.Register(r)
	return r
}

// handleMirrorEntry shows what the mirror holds for one identity, so
// operators can check a record reached the secondary copy.
func (a *app) handleMirrorEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := models.ParseIdentity(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := a.mirror.Lookup(ctx, id)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "certificate is not mirrored"))
		return
	case err != nil:
		a.logger.WarnContext(ctx, "mirror lookup failed", "certificate_id", string(id), "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "mirror unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

// handleHealth reports each configured dependency. Any failure makes the
// whole response 503.
func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(a.health))
	for _, hc := range a.health {
		if err := hc.check(ctx); err != nil {
			a.logger.WarnContext(ctx, "health check failed", "dependency", hc.name, "error", err)
			checks[hc.name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[hc.name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": overall, "checks": checks})
}
