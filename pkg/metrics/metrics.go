package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Client metrics
	ClientsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "downtime_clients_total",
			Help: "Total number of clients by desired state",
		},
		[]string{"state"},
	)

	ChannelsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "downtime_channels_connected",
			Help: "Number of clients with an attached push channel",
		},
	)

	// Reconciliation metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "downtime_reconciliation_duration_seconds",
			Help:    "Time taken by one reconciliation tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "downtime_reconciliation_cycles_total",
			Help: "Total number of completed reconciliation ticks",
		},
	)

	ReconciliationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downtime_reconciliation_errors_total",
			Help: "Total number of reconciliation errors by kind",
		},
		[]string{"kind"},
	)

	StateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downtime_state_transitions_total",
			Help: "Total number of desired state transitions by target state",
		},
		[]string{"state"},
	)

	// Delivery metrics
	PushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downtime_pushes_total",
			Help: "Total number of state pushes by result",
		},
		[]string{"result"},
	)

	PushAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "downtime_push_attempts_total",
			Help: "Total number of individual push send attempts",
		},
	)

	PushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "downtime_push_duration_seconds",
			Help:    "Time from first push attempt to final result in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10},
		},
	)

	// Heartbeat metrics
	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downtime_heartbeats_total",
			Help: "Total number of heartbeats by result",
		},
		[]string{"result"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downtime_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "downtime_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ClientsTotal)
	prometheus.MustRegister(ChannelsConnected)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ReconciliationErrorsTotal)
	prometheus.MustRegister(StateTransitionsTotal)
	prometheus.MustRegister(PushesTotal)
	prometheus.MustRegister(PushAttemptsTotal)
	prometheus.MustRegister(PushDuration)
	prometheus.MustRegister(HeartbeatsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of an operation
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in a histogram
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time in a histogram vec
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
