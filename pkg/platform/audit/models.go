package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance, such as a
	// certificate being committed to the ledger.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to fraud monitoring, such as a
	// document that disagrees with its ledger record.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// Subject is the certificate identity the event concerns.
	Subject  string `json:"subject"`
	Action   string `json:"action"`
	Workflow string `json:"workflow,omitempty"`
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
	// RequestID correlates the event with the HTTP request.
	RequestID string `json:"request_id,omitempty"`
	// ActorID is the authenticated issuer, empty for anonymous verifiers.
	ActorID   string `json:"actor_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// OutboxEntry is a serialized event waiting to be relayed to the broker.
type OutboxEntry struct {
	ID        string
	Category  EventCategory
	EventType string
	Subject   string
	Payload   []byte
}

type AuditEvent string

const (
	EventCertificateIssued   AuditEvent = "certificate_issued"
	EventCertificateVerified AuditEvent = "certificate_verified"
	EventCertificateRejected AuditEvent = "certificate_rejected"
	EventCertificateNotFound AuditEvent = "certificate_not_found"
	EventMirrorWriteFailed   AuditEvent = "mirror_write_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCertificateIssued:   CategoryCompliance,
	EventCertificateRejected: CategorySecurity,
	EventCertificateVerified: CategoryOperations,
	EventCertificateNotFound: CategoryOperations,
	EventMirrorWriteFailed:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
