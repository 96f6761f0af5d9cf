package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Client bundles a franz-go producer client with its admin wrapper.
type Client struct {
	*kgo.Client
	Admin *kadm.Client
}

// New connects to brokers and pings the cluster.
func New(ctx context.Context, brokers []string, opts ...kgo.Opt) (*Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	all := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("certvault"),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)

	cl, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}
	return &Client{Client: cl, Admin: kadm.NewClient(cl)}, nil
}
