package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookswap_http_request_duration_seconds",
			Help:    "API request latency by chi route pattern; unrouted paths are labelled unmatched.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookswap_http_requests_in_flight",
			Help: "API requests currently being served",
		},
	)
	HandlerPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookswap_http_handler_panics_total",
			Help: "Handler panics recovered and answered with 500",
		},
	)

	// exchanges
	ProposalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_proposals_total",
			Help: "Exchange proposals by outcome",
		},
		[]string{"outcome"}, // created|rejected|not_found|error
	)
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_transitions_total",
			Help: "Exchange state transitions by event and outcome",
		},
		[]string{"event", "outcome"}, // outcome: applied|forbidden|illegal|not_found|error
	)

	// worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
	WorkerJobFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_job_failures_total",
			Help: "Background jobs that returned an error",
		},
	)

	initOnce sync.Once
)

// Handler serves /metrics.
var Handler = promhttp.Handler

// Init registers collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestLatency, RequestsInFlight, HandlerPanics, ProposalsTotal, TransitionsTotal, WorkerQueueDepth, WorkerJobFailures)
	})
}
