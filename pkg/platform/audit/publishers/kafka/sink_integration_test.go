//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	kafkaclient "certvault/internal/platform/kafka"
	audit "certvault/pkg/platform/audit"
	"certvault/pkg/platform/audit/publishers/kafka"
	"certvault/pkg/testutil/containers"
)

func TestSink_RoundTrip(t *testing.T) {
	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	producer, err := kafkaclient.New(ctx, broker.Brokers)
	require.NoError(t, err)
	defer producer.Close()

	sink := kafka.NewSink(producer, kafka.WithTopicPrefix("it.audit."))
	require.NoError(t, sink.EnsureTopics(ctx, producer.Admin, 1, 1))
	require.NoError(t, sink.EnsureTopics(ctx, producer.Admin, 1, 1), "existing topics are not an error")

	require.NoError(t, sink.Append(ctx, audit.Event{
		Subject: "abc",
		Action:  string(audit.EventCertificateIssued),
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(sink.TopicFor(audit.CategoryCompliance)),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.NotEmpty(t, records)
	require.Equal(t, "abc", string(records[0].Key))
}
