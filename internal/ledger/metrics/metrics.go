package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger module.
// Tracks transaction throughput per type/outcome and critical path durations.
type Metrics struct {
	TransactionsResolved *prometheus.CounterVec
	AuthorizationDenied  prometheus.Counter
	TransferDuration     prometheus.Histogram
	ResolveDuration      prometheus.Histogram
}

// New creates a new Metrics instance with all ledger module metrics registered.
func New() *Metrics {
	return &Metrics{
		TransactionsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "corebank_transactions_resolved_total",
			Help: "Total number of transactions resolved, by type and terminal status",
		}, []string{"type", "status"}),
		AuthorizationDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "corebank_authorization_denied_total",
			Help: "Total number of operations refused by the authorization gate",
		}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "corebank_transfer_duration_seconds",
			Help:    "Duration of transfer operations end to end (money movement critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "corebank_resolve_duration_seconds",
			Help:    "Duration of pending transaction resolution",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementResolved records a transaction reaching a terminal status.
func (m *Metrics) IncrementResolved(txType, status string) {
	m.TransactionsResolved.WithLabelValues(txType, status).Inc()
}

// IncrementDenied records an authorization denial.
func (m *Metrics) IncrementDenied() {
	m.AuthorizationDenied.Inc()
}

// ObserveTransfer records the duration of a transfer operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransfer(start time.Time) {
	m.TransferDuration.Observe(time.Since(start).Seconds())
}

// ObserveResolve records the duration of a resolution.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}
