package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for callback processing. All methods are
// nil-safe so tests can pass a nil *Metrics.
type Metrics struct {
	// Processed callbacks by provider outcome and recipient route
	CallbacksProcessed *prometheus.CounterVec

	// Failed callbacks by failure kind
	CallbacksFailed *prometheus.CounterVec

	// Duplicate deliveries acknowledged without reprocessing
	CallbacksDuplicate prometheus.Counter

	// Full processing latency
	ProcessLatency prometheus.Histogram

	// Whitelist client call latency by operation
	WhitelistLatency *prometheus.HistogramVec

	// Addresses still available for assignment
	PoolAvailable prometheus.Gauge
}

// New creates and registers the callback processing metrics.
func New() *Metrics {
	return &Metrics{
		CallbacksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presale_kyc_callbacks_processed_total",
			Help: "KYC callbacks persisted, by outcome and recipient route",
		}, []string{"outcome", "route"}),

		CallbacksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presale_kyc_callbacks_failed_total",
			Help: "KYC callbacks that failed, by failure kind",
		}, []string{"kind"}),

		CallbacksDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presale_kyc_callbacks_duplicate_total",
			Help: "KYC callbacks acknowledged as duplicates of a recorded transaction",
		}),

		ProcessLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presale_kyc_process_duration_seconds",
			Help:    "Duration of callback processing including the whitelist call",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		WhitelistLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "presale_whitelist_call_duration_seconds",
			Help:    "Duration of whitelist contract calls by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),

		PoolAvailable: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "presale_pool_available_addresses",
			Help: "Pool addresses not yet assigned",
		}),
	}
}

func (m *Metrics) IncrementProcessed(outcome, route string) {
	if m != nil {
		m.CallbacksProcessed.WithLabelValues(outcome, route).Inc()
	}
}

func (m *Metrics) IncrementFailed(kind string) {
	if m != nil {
		m.CallbacksFailed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.CallbacksDuplicate.Inc()
	}
}

func (m *Metrics) ObserveProcessLatency(d time.Duration) {
	if m != nil {
		m.ProcessLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveWhitelistLatency(operation string, d time.Duration) {
	if m != nil {
		m.WhitelistLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) SetPoolAvailable(n int) {
	if m != nil {
		m.PoolAvailable.Set(float64(n))
	}
}
