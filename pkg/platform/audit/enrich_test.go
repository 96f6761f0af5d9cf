package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"certvault/pkg/requestcontext"
)

func TestEnrich(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	ctx = requestcontext.WithTime(ctx, fixed)
	ctx = requestcontext.WithIssuer(ctx, "registrar")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1",
		"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")

	t.Run("fills empty fields from context", func(t *testing.T) {
		e := Enrich(ctx, Event{Action: string(EventCertificateIssued), Subject: "abc"})

		assert.NotEmpty(t, e.ID)
		assert.Equal(t, CategoryCompliance, e.Category)
		assert.Equal(t, fixed, e.Timestamp)
		assert.Equal(t, "req-1", e.RequestID)
		assert.Equal(t, "registrar", e.ActorID)
		assert.Equal(t, "10.0.0.1", e.ClientIP)
		assert.Contains(t, e.UserAgent, "Firefox")
	})

	t.Run("keeps caller values", func(t *testing.T) {
		e := Enrich(ctx, Event{ID: "fixed", Action: "custom", RequestID: "other"})
		assert.Equal(t, "fixed", e.ID)
		assert.Equal(t, "other", e.RequestID)
		assert.Equal(t, CategoryOperations, e.Category)
	})
}

func TestSummarizeAgent(t *testing.T) {
	assert.Empty(t, SummarizeAgent(""))
	assert.Equal(t, "bot:Googlebot",
		SummarizeAgent("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	assert.Contains(t, SummarizeAgent(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		"Chrome")
}

func TestCategory(t *testing.T) {
	assert.Equal(t, CategorySecurity, EventCertificateRejected.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("unknown").Category())
}
