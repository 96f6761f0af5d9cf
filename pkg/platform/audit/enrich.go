package audit

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"certvault/pkg/requestcontext"
)

// Enrich fills ID, category, timestamp and request metadata from ctx for
// any field the caller left empty.
func Enrich(ctx context.Context, event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.Issuer(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = SummarizeAgent(requestcontext.UserAgent(ctx))
	}
	return event
}

// SummarizeAgent reduces a raw User-Agent to "browser version (os)", or
// "bot:name" for crawlers.
func SummarizeAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if ua.Bot() {
		return "bot:" + name
	}
	summary := strings.TrimSpace(name + " " + version)
	if os := ua.OS(); os != "" {
		summary += " (" + os + ")"
	}
	if ua.Mobile() {
		summary += " mobile"
	}
	return summary
}
