package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certificate pipeline.
type Metrics struct {
	// Verification outcomes by workflow and outcome kind
	Outcomes *prometheus.CounterVec

	// Gateway attempts by gateway and result
	GatewayAttempts *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec

	// Ledger call latency by operation
	LedgerLatency *prometheus.HistogramVec

	CertificatesIssued  prometheus.Counter
	MirrorWriteFailures *prometheus.CounterVec
}

// New registers the certificate metrics with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certvault_verification_outcomes_total",
			Help: "Verification outcomes by workflow and kind",
		}, []string{"workflow", "outcome"}),

		GatewayAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certvault_gateway_attempts_total",
			Help: "Content gateway fetch attempts by gateway and result",
		}, []string{"gateway", "result"}),

		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certvault_gateway_fetch_duration_seconds",
			Help:    "Duration of content gateway fetch attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"gateway"}),

		LedgerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certvault_ledger_call_duration_seconds",
			Help:    "Duration of ledger calls by operation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30},
		}, []string{"operation"}), // operation: "exists", "get", "commit"

		CertificatesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "certvault_certificates_issued_total",
			Help: "Certificates committed to the ledger",
		}),

		MirrorWriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certvault_mirror_write_failures_total",
			Help: "Best-effort mirror writes that failed or were dropped",
		}, []string{"reason"}),
	}
}

// IncrementOutcome records a verification outcome.
func (m *Metrics) IncrementOutcome(workflow, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(workflow, outcome).Inc()
	}
}

// ObserveGatewayAttempt records one gateway attempt and its latency.
func (m *Metrics) ObserveGatewayAttempt(gateway, result string, d time.Duration) {
	if m != nil {
		m.GatewayAttempts.WithLabelValues(gateway, result).Inc()
		m.GatewayLatency.WithLabelValues(gateway).Observe(d.Seconds())
	}
}

// ObserveLedgerCall records a ledger call duration.
func (m *Metrics) ObserveLedgerCall(operation string, d time.Duration) {
	if m != nil {
		m.LedgerLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementIssued() {
	if m != nil {
		m.CertificatesIssued.Inc()
	}
}

func (m *Metrics) IncrementMirrorFailure(reason string) {
	if m != nil {
		m.MirrorWriteFailures.WithLabelValues(reason).Inc()
	}
}
