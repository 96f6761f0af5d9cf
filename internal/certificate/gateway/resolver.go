// Package gateway retrieves content by address through an ordered list of
// redundant HTTP gateways.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"certvault/internal/certificate/metrics"
	"certvault/internal/certificate/models"
)

const (
	// DefaultTimeout bounds each gateway attempt independently.
	DefaultTimeout = 15 * time.Second
	// DefaultMaxBodyBytes caps a fetched document.
	DefaultMaxBodyBytes int64 = 32 << 20
)

// DefaultGateways is the public gateway list, tried in order.
var DefaultGateways = []string{
	"https://gateway.pinata.cloud/ipfs",
	"https://cloudflare-ipfs.com/ipfs",
	"https://ipfs.io/ipfs",
	"https://dweb.link/ipfs",
}

type endpoint struct {
	name string
	base string
}

// Resolver tries gateways sequentially; the first HTTP 200 with a
// non-empty body wins and later gateways are never contacted.
type Resolver struct {
	endpoints []endpoint
	client    *http.Client
	timeout   time.Duration
	maxBody   int64
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithTimeout sets the per-gateway attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(r *Resolver) {
		r.maxBody = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New builds a Resolver over baseURLs, each of which serves
// GET {base}/{address}.
func New(baseURLs []string, opts ...Option) (*Resolver, error) {
	if len(baseURLs) == 0 {
		return nil, errors.New("at least one gateway is required")
	}
	r := &Resolver{
		client:  &http.Client{},
		timeout: DefaultTimeout,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, raw := range baseURLs {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid gateway URL %q", raw)
		}
		// Gateways may share a host under different paths, so the name
		// keeps the path.
		r.endpoints = append(r.endpoints, endpoint{
			name: u.Host + strings.TrimRight(u.Path, "/"),
			base: strings.TrimRight(u.String(), "/"),
		})
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Fetch returns the content at addr. It fails with ErrInvalidContentAddress
// without any network call when the prefix is wrong, with the caller's
// context error when ctx ends, and otherwise with *AllGatewaysFailedError
// once every gateway has failed.
func (r *Resolver) Fetch(ctx context.Context, addr models.ContentAddress) ([]byte, error) {
	if !addr.HasStorePrefix() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContentAddress, string(addr))
	}

	attempts := make([]Attempt, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		body, attempt := r.try(ctx, ep, addr)
		if attempt == nil {
			r.metrics.ObserveGatewayAttempt(ep.name, "ok", time.Since(start))
			if r.logger != nil {
				r.logger.DebugContext(ctx, "gateway fetch succeeded",
					"gateway", ep.name,
					"content_address", string(addr),
					"bytes", len(body),
				)
			}
			return body, nil
		}
		// The caller gave up; the failure is not the gateway's.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.metrics.ObserveGatewayAttempt(ep.name, string(attempt.Category), time.Since(start))
		if r.logger != nil {
			r.logger.WarnContext(ctx, "gateway fetch failed",
				"gateway", ep.name,
				"content_address", string(addr),
				"reason", attempt.String(),
			)
		}
		attempts = append(attempts, *attempt)
	}
	return nil, &AllGatewaysFailedError{Address: addr, Attempts: attempts}
}

func (r *Resolver) try(ctx context.Context, ep endpoint, addr models.ContentAddress) ([]byte, *Attempt) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, ep.base+"/"+url.PathEscape(string(addr)), nil)
	if err != nil {
		return nil, &Attempt{Gateway: ep.name, Category: FailureTransport, Err: err}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, classify(attemptCtx, ep.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &Attempt{Gateway: ep.name, Category: FailureStatus, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody+1))
	if err != nil {
		return nil, classify(attemptCtx, ep.name, err)
	}
	if int64(len(body)) > r.maxBody {
		return nil, &Attempt{Gateway: ep.name, Category: FailureTransport, Err: fmt.Errorf("body exceeds %d bytes", r.maxBody)}
	}
	if len(body) == 0 {
		return nil, &Attempt{Gateway: ep.name, Category: FailureEmpty, StatusCode: resp.StatusCode}
	}
	return body, nil
}

func classify(attemptCtx context.Context, gateway string, err error) *Attempt {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &Attempt{Gateway: gateway, Category: FailureTimeout, Err: err}
	}
	return &Attempt{Gateway: gateway, Category: FailureTransport, Err: err}
}
