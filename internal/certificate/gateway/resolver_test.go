package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certvault/internal/certificate/models"
)

const addr = models.ContentAddress("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")

type fakeGateway struct {
	server *httptest.Server
	hits   atomic.Int32
	paths  chan string
}

func newFakeGateway(t *testing.T, handler http.HandlerFunc) *fakeGateway {
	g := &fakeGateway{paths: make(chan string, 8)}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.hits.Add(1)
		g.paths <- r.URL.Path
		handler(w, r)
	}))
	t.Cleanup(g.server.Close)
	return g
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}
}

func body(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(content))
	}
}

func hang(w http.ResponseWriter, r *http.Request) {
	<-r.Context().Done()
}

type ResolverSuite struct {
	suite.Suite
	ctx context.Context
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *ResolverSuite) resolver(gws ...*fakeGateway) *Resolver {
	urls := make([]string, len(gws))
	for i, g := range gws {
		urls[i] = g.server.URL + "/ipfs/"
	}
	r, err := New(urls, WithTimeout(100*time.Millisecond))
	s.Require().NoError(err)
	return r
}

// =============================================================================
// Construction
// =============================================================================

func (s *ResolverSuite) TestNewValidatesGateways() {
	_, err := New(nil)
	s.Error(err)

	_, err = New([]string{"not a url"})
	s.Error(err)

	r, err := New(DefaultGateways)
	s.Require().NoError(err)
	s.Len(r.endpoints, 4)
	s.Equal("gateway.pinata.cloud/ipfs", r.endpoints[0].name)
}

func (s *ResolverSuite) TestGatewaysOnOneHostKeepDistinctNames() {
	paths := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r, err := New([]string{srv.URL + "/primary/ipfs", srv.URL + "/backup/ipfs/"})
	s.Require().NoError(err)
	s.NotEqual(r.endpoints[0].name, r.endpoints[1].name)

	_, err = r.Fetch(s.ctx, addr)
	var failed *AllGatewaysFailedError
	s.Require().ErrorAs(err, &failed)
	s.Require().Len(failed.Attempts, 2)
	s.True(strings.HasSuffix(failed.Attempts[0].Gateway, "/primary/ipfs"))
	s.True(strings.HasSuffix(failed.Attempts[1].Gateway, "/backup/ipfs"))
	s.Equal("/primary/ipfs/"+string(addr), <-paths)
	s.Equal("/backup/ipfs/"+string(addr), <-paths)
}

// =============================================================================
// Fallback
// =============================================================================

func (s *ResolverSuite) TestFirstGatewaySucceeds() {
	first := newFakeGateway(s.T(), body("%PDF-1.4 doc"))
	second := newFakeGateway(s.T(), body("other"))

	got, err := s.resolver(first, second).Fetch(s.ctx, addr)
	s.Require().NoError(err)
	s.Equal("%PDF-1.4 doc", string(got))
	s.Equal("/ipfs/"+string(addr), <-first.paths)
	s.Zero(second.hits.Load())
}

func (s *ResolverSuite) TestFallsBackPastFailuresAndStops() {
	notFound := newFakeGateway(s.T(), status(http.StatusNotFound))
	slow := newFakeGateway(s.T(), hang)
	empty := newFakeGateway(s.T(), status(http.StatusOK))
	good := newFakeGateway(s.T(), body("content"))
	never := newFakeGateway(s.T(), body("unreachable"))

	got, err := s.resolver(notFound, slow, empty, good, never).Fetch(s.ctx, addr)
	s.Require().NoError(err)
	s.Equal("content", string(got))
	s.EqualValues(1, notFound.hits.Load())
	s.EqualValues(1, slow.hits.Load())
	s.EqualValues(1, empty.hits.Load())
	s.EqualValues(1, good.hits.Load())
	s.Zero(never.hits.Load())
}

func (s *ResolverSuite) TestExhaustionEnumeratesEveryReason() {
	bad := newFakeGateway(s.T(), status(http.StatusBadGateway))
	slow := newFakeGateway(s.T(), hang)
	empty := newFakeGateway(s.T(), status(http.StatusOK))

	_, err := s.resolver(bad, slow, empty).Fetch(s.ctx, addr)

	var failed *AllGatewaysFailedError
	s.Require().ErrorAs(err, &failed)
	s.Equal(addr, failed.Address)
	s.Require().Len(failed.Attempts, 3)
	s.Equal(FailureStatus, failed.Attempts[0].Category)
	s.Equal(http.StatusBadGateway, failed.Attempts[0].StatusCode)
	s.Equal(FailureTimeout, failed.Attempts[1].Category)
	s.Equal(FailureEmpty, failed.Attempts[2].Category)
	s.True(strings.Contains(err.Error(), "HTTP 502"))
}

func (s *ResolverSuite) TestTransportFailure() {
	down := newFakeGateway(s.T(), body("x"))
	down.server.Close()

	_, err := s.resolver(down).Fetch(s.ctx, addr)
	var failed *AllGatewaysFailedError
	s.Require().ErrorAs(err, &failed)
	s.Equal(FailureTransport, failed.Attempts[0].Category)
}

func (s *ResolverSuite) TestOversizedBody() {
	big := newFakeGateway(s.T(), body(strings.Repeat("a", 64)))
	r, err := New([]string{big.server.URL}, WithMaxBodyBytes(16))
	s.Require().NoError(err)

	_, err = r.Fetch(s.ctx, addr)
	var failed *AllGatewaysFailedError
	s.Require().ErrorAs(err, &failed)
}

// =============================================================================
// Validation and cancellation
// =============================================================================

func (s *ResolverSuite) TestInvalidAddressMakesNoRequest() {
	g := newFakeGateway(s.T(), body("x"))

	_, err := s.resolver(g).Fetch(s.ctx, "bafy-not-v0")
	s.True(errors.Is(err, ErrInvalidContentAddress))
	s.Zero(g.hits.Load())
}

func (s *ResolverSuite) TestCallerCancellationStopsFallback() {
	slow := newFakeGateway(s.T(), hang)
	next := newFakeGateway(s.T(), body("x"))
	r, err := New([]string{slow.server.URL, next.server.URL}, WithTimeout(5*time.Second))
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	_, err = r.Fetch(ctx, addr)
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Zero(next.hits.Load())
}
