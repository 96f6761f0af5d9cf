package worker

import (
	"context"
	"log/slog"
	"time"

	audit "certvault/pkg/platform/audit"
)

// Outbox is the source of unpublished audit entries.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// Sink receives relayed entries.
type Sink interface {
	Publish(ctx context.Context, entry audit.OutboxEntry) error
}

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Relay moves outbox entries to the sink in creation order. An entry is
// marked published only after the sink accepts it, so delivery is
// at-least-once.
type Relay struct {
	outbox    Outbox
	sink      Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRelay(outbox Outbox, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		sink:      sink,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays batches until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "audit relay batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were marked.
// It stops at the first sink failure so later entries are not published
// ahead of earlier ones.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	published := make([]string, 0, len(entries))
	var publishErr error
	for _, entry := range entries {
		if publishErr = r.sink.Publish(ctx, entry); publishErr != nil {
			break
		}
		published = append(published, entry.ID)
	}
	if err := r.outbox.MarkPublished(ctx, published); err != nil {
		return 0, err
	}
	return len(published), publishErr
}
