// Package kafka publishes audit events to Kafka topics, one topic per
// event category.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "certvault/pkg/platform/audit"
)

const (
	DefaultTopicPrefix = "certvault.audit."
	eventTypeHeader    = "event_type"
)

// Producer is the subset of *kgo.Client used by the sink.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink implements audit.Store by producing each event synchronously.
// It is also the relay target for outbox entries.
type Sink struct {
	producer    Producer
	topicPrefix string
}

type Option func(*Sink)

func WithTopicPrefix(prefix string) Option {
	return func(s *Sink) {
		if prefix != "" {
			s.topicPrefix = prefix
		}
	}
}

func NewSink(producer Producer, opts ...Option) *Sink {
	s := &Sink{producer: producer, topicPrefix: DefaultTopicPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TopicFor returns the topic events of the given category are written to.
func (s *Sink) TopicFor(category audit.EventCategory) string {
	return s.topicPrefix + string(category)
}

// Topics lists every topic the sink may write to.
func (s *Sink) Topics() []string {
	return []string{
		s.TopicFor(audit.CategoryCompliance),
		s.TopicFor(audit.CategorySecurity),
		s.TopicFor(audit.CategoryOperations),
	}
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	event = audit.Enrich(ctx, event)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.Publish(ctx, audit.OutboxEntry{
		ID:        event.ID,
		Category:  event.Category,
		EventType: event.Action,
		Subject:   event.Subject,
		Payload:   payload,
	})
}

// Publish produces a pre-serialized entry keyed by subject so events for one
// certificate stay ordered within a partition.
func (s *Sink) Publish(ctx context.Context, entry audit.OutboxEntry) error {
	record := &kgo.Record{
		Topic: s.TopicFor(entry.Category),
		Key:   []byte(entry.Subject),
		Value: entry.Payload,
		Headers: []kgo.RecordHeader{
			{Key: eventTypeHeader, Value: []byte(entry.EventType)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event %s: %w", entry.ID, err)
	}
	return nil
}

// EnsureTopics creates the sink's topics, ignoring ones that already exist.
func (s *Sink) EnsureTopics(ctx context.Context, admin *kadm.Client, partitions int32, replication int16) error {
	responses, err := admin.CreateTopics(ctx, partitions, replication, nil, s.Topics()...)
	if err != nil {
		return fmt.Errorf("create audit topics: %w", err)
	}
	for _, resp := range responses.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}
