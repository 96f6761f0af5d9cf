package mirror

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"certvault/internal/certificate/metrics"
	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
	"certvault/pkg/requestcontext"
)

const (
	defaultQueueSize    = 256
	defaultWorkers      = 2
	defaultWriteTimeout = 5 * time.Second
)

// FailureHook observes every mirror write that failed or was dropped.
type FailureHook func(ctx context.Context, rec models.LedgerRecord, err error)

type job struct {
	rec       models.LedgerRecord
	requestID string
	at        time.Time
}

// Writer saves records to a Store in the background. Enqueue never blocks;
// failures are reported only through logs, metrics and the FailureHook.
type Writer struct {
	store     Store
	queue     chan job
	workers   int
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	onFailure FailureHook
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

func WithQueueSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.queue = make(chan job, n)
		}
	}
}

func WithWorkers(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithWriteTimeout bounds each Save call.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		w.timeout = d
	}
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) WriterOption {
	return func(w *Writer) {
		w.metrics = m
	}
}

func WithFailureHook(hook FailureHook) WriterOption {
	return func(w *Writer) {
		w.onFailure = hook
	}
}

func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:   store,
		queue:   make(chan job, defaultQueueSize),
		workers: defaultWorkers,
		timeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue schedules rec for saving and reports whether it was queued.
func (w *Writer) Enqueue(ctx context.Context, rec models.LedgerRecord) bool {
	j := job{rec: rec, requestID: requestcontext.RequestID(ctx), at: requestcontext.Now(ctx)}
	select {
	case w.queue <- j:
		return true
	default:
		w.fail(w.jobContext(context.Background(), j), j, sentinel.ErrQueueFull, "queue_full")
		return false
	}
}

// Run saves queued records until ctx ends, then drains what is already
// queued before returning.
func (w *Writer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range w.workers {
		g.Go(func() error {
			w.loop(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	w.drain()
	return nil
}

func (w *Writer) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.queue:
			w.write(j)
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case j := <-w.queue:
			w.write(j)
		default:
			return
		}
	}
}

// Lookup reads the mirrored entry for id, bounded by the write timeout.
// Unknown identities return sentinel.ErrNotFound.
func (w *Writer) Lookup(ctx context.Context, id models.CertificateIdentity) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.store.Find(ctx, id)
}

func (w *Writer) write(j job) {
	ctx, cancel := context.WithTimeout(w.jobContext(context.Background(), j), w.timeout)
	defer cancel()

	if err := w.store.Save(ctx, j.rec); err != nil {
		w.fail(ctx, j, err, "save_failed")
		return
	}
	if w.logger != nil {
		w.logger.DebugContext(ctx, "mirror entry saved",
			"certificate_id", string(j.rec.Identity),
			"request_id", j.requestID,
		)
	}
}

func (w *Writer) jobContext(ctx context.Context, j job) context.Context {
	ctx = requestcontext.WithRequestID(ctx, j.requestID)
	return requestcontext.WithTime(ctx, j.at)
}

func (w *Writer) fail(ctx context.Context, j job, err error, reason string) {
	w.metrics.IncrementMirrorFailure(reason)
	if w.logger != nil {
		w.logger.WarnContext(ctx, "mirror write failed",
			"certificate_id", string(j.rec.Identity),
			"request_id", j.requestID,
			"reason", reason,
			"error", err,
		)
	}
	if w.onFailure != nil {
		w.onFailure(ctx, j.rec, err)
	}
}
