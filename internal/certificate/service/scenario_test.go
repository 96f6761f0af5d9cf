package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certvault/internal/certificate/contentstore"
	"certvault/internal/certificate/gateway"
	"certvault/internal/certificate/ledger"
	"certvault/internal/certificate/models"
	"certvault/internal/certificate/render"
	"certvault/pkg/requestcontext"
)

// ScenarioSuite drives the workflows end to end over in-memory
// collaborators, with the content store served through a real HTTP gateway
// behind a failing one.
type ScenarioSuite struct {
	suite.Suite
	ctx     context.Context
	ledger  *ledger.InMemoryLedger
	content *contentstore.InMemoryStore
	svc     *Service
}

func TestScenarioSuite(t *testing.T) {
	suite.Run(t, new(ScenarioSuite))
}

func (s *ScenarioSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), issuedAt)
	s.ledger = ledger.NewInMemoryLedger(ledger.WithShape(ledger.ShapeNamed))
	s.content = contentstore.NewInMemoryStore()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	s.T().Cleanup(down.Close)
	mux := http.NewServeMux()
	mux.Handle("/ipfs/", s.content)
	up := httptest.NewServer(mux)
	s.T().Cleanup(up.Close)

	resolver, err := gateway.New([]string{down.URL + "/ipfs", up.URL + "/ipfs"}, gateway.WithTimeout(2*time.Second))
	s.Require().NoError(err)

	s.svc, err = New(s.ledger, s.content, resolver,
		WithRenderer(render.TextRenderer{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
}

func (s *ScenarioSuite) TestIssueThenVerifyByIdentity() {
	issued, err := s.svc.Issue(s.ctx, adaFields())
	s.Require().NoError(err)
	s.Equal(adaID, issued.Record.Identity)
	s.True(issued.Record.ContentAddress.HasStorePrefix())

	outcome, err := s.svc.VerifyByIdentity(s.ctx, string(adaID))
	s.Require().NoError(err)
	s.Require().True(outcome.IsVerified(), outcome.Reason())
	s.Equal(adaFields(), outcome.Record.Fields)
	s.Equal(issued.Record.ContentAddress, outcome.Record.ContentAddress)
	s.Contains(string(outcome.Content), "This is to certify that Ada Lovelace")
	s.Contains(string(outcome.Content), "Date: 2024-05-17")
}

func (s *ScenarioSuite) TestIssueThenVerifyByContent() {
	issued, err := s.svc.Issue(s.ctx, adaFields())
	s.Require().NoError(err)
	doc, err := s.content.Get(s.ctx, issued.Record.ContentAddress)
	s.Require().NoError(err)

	outcome, err := s.svc.VerifyByContent(s.ctx, doc)
	s.Require().NoError(err)
	s.True(outcome.IsVerified(), outcome.Reason())
	s.Equal(adaID, outcome.Identity)
}

func (s *ScenarioSuite) TestEditedDocumentIsNotFound() {
	_, err := s.svc.Issue(s.ctx, adaFields())
	s.Require().NoError(err)

	edited := adaFields()
	edited.CourseName = "Advanced Algorithms"
	doc, err := render.TextRenderer{}.Render(s.ctx, edited, issuedAt)
	s.Require().NoError(err)

	outcome, err := s.svc.VerifyByContent(s.ctx, doc)
	s.Require().NoError(err)
	s.Equal(models.OutcomeNotFound, outcome.Kind)
}

func (s *ScenarioSuite) TestNeverIssuedIdentityIsNotFound() {
	outcome, err := s.svc.VerifyByIdentity(s.ctx, "0000000000000000000000000000000000000000000000000000000000000000")
	s.Require().NoError(err)
	s.Equal(models.OutcomeNotFound, outcome.Kind)
}

func (s *ScenarioSuite) TestSecondIssueConflicts() {
	_, err := s.svc.Issue(s.ctx, adaFields())
	s.Require().NoError(err)

	again := adaFields()
	again.CandidateName = "ADA LOVELACE"
	_, err = s.svc.Issue(s.ctx, again)
	s.Require().Error(err)
}

func (s *ScenarioSuite) TestContentMissingFromEveryGateway() {
	s.ledger.Put(models.LedgerRecord{
		Identity:        adaID,
		Fields:          adaFields(),
		ContentAddress:  "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		CommitTimestamp: "1715938200",
	})

	outcome, err := s.svc.VerifyByIdentity(s.ctx, string(adaID))
	s.Require().NoError(err)
	s.Equal(models.OutcomeRetrievalFailed, outcome.Kind)
	s.Contains(outcome.Cause, "HTTP 502")
	s.Contains(outcome.Cause, "HTTP 404")
}
