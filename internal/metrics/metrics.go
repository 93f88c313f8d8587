package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	paymentsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Total number of payments created",
		},
		[]string{"method"},
	)

	paymentsSettledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_settled_total",
			Help: "Total number of payments that reached a terminal status",
		},
		[]string{"method", "status"},
	)

	oracleFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_oracle_fallback_total",
			Help: "Bitcoin quotes priced with the static fallback rate",
		},
	)

	transitionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transition_failures_total",
			Help: "Terminal transitions that could not be persisted after retries",
		},
		[]string{"stage"},
	)

	monitorsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_monitors_active",
			Help: "Bitcoin settlement monitors currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(paymentsCreatedTotal)
	prometheus.MustRegister(paymentsSettledTotal)
	prometheus.MustRegister(oracleFallbackTotal)
	prometheus.MustRegister(transitionFailuresTotal)
	prometheus.MustRegister(monitorsActive)
}

func RecordPaymentCreated(method string) {
	paymentsCreatedTotal.WithLabelValues(method).Inc()
}

func RecordPaymentSettled(method, status string) {
	paymentsSettledTotal.WithLabelValues(method, status).Inc()
}

func RecordOracleFallback() {
	oracleFallbackTotal.Inc()
}

// RecordTransitionFailure counts a dead-lettered write; stage is "payment" or "appointment".
func RecordTransitionFailure(stage string) {
	transitionFailuresTotal.WithLabelValues(stage).Inc()
}

func MonitorStarted() {
	monitorsActive.Inc()
}

func MonitorStopped() {
	monitorsActive.Dec()
}
