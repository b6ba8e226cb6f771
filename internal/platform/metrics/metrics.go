// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rcm"

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	auditWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit entries that could not be persisted.",
		},
		[]string{"action"},
	)

	claimTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_transitions_total",
			Help:      "Committed claim status transitions.",
		},
		[]string{"from", "to"},
	)

	scrubberRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrubber_runs_total",
			Help:      "Validation runs by verdict.",
		},
		[]string{"result"},
	)

	advisoryReviews = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisory_reviews_total",
			Help:      "Advisory reviews by outcome.",
		},
		[]string{"outcome"},
	)
)

// Advisory outcomes.
const (
	AdvisoryOK       = "ok"
	AdvisoryFallback = "fallback"
	AdvisoryDisabled = "disabled"
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			auditWriteFailures,
			claimTransitions,
			scrubberRuns,
			advisoryReviews,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RequestStarted() {
	httpInFlight.Inc()
}

// RequestFinished records one completed request. path should be the route
// template, not the raw URL, to keep label cardinality bounded.
func RequestFinished(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	httpRequestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
	httpRequestsTotal.WithLabelValues(method, path, code).Inc()
	httpInFlight.Dec()
}

func AuditWriteFailed(action string) {
	auditWriteFailures.WithLabelValues(action).Inc()
}

func ClaimTransition(from, to string) {
	claimTransitions.WithLabelValues(from, to).Inc()
}

func ScrubberRun(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	scrubberRuns.WithLabelValues(result).Inc()
}

func AdvisoryReview(outcome string) {
	advisoryReviews.WithLabelValues(outcome).Inc()
}
