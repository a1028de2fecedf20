// Package metrics exports bidding and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vendedor360/backend/internal/domain"
)

const namespace = "vendedor360"

// Recorder owns a registry with the bidding and HTTP collectors.
// It implements domain.RunMetrics.
type Recorder struct {
	registry *prometheus.Registry

	opportunitiesScanned *prometheus.CounterVec
	submissions          *prometheus.CounterVec
	runs                 *prometheus.CounterVec
	runDuration          *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
}

// NewRecorder creates a recorder with its own registry, including Go runtime and process collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		opportunitiesScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "opportunities_scanned_total",
				Help:      "Total number of opportunities read from portal listings.",
			},
			[]string{"portal"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Offers by outcome: submitted, failed, duplicate, log_failed.",
			},
			[]string{"portal", "outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Bidding sessions by final state.",
			},
			[]string{"portal", "state"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Histogram of bidding session durations.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"portal"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "endpoint", "status"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.opportunitiesScanned,
		r.submissions,
		r.runs,
		r.runDuration,
		r.httpRequestsTotal,
		r.httpRequestDuration,
	)
	return r
}

// OpportunityScanned counts one opportunity read from a listing
func (r *Recorder) OpportunityScanned(portal string) {
	r.opportunitiesScanned.WithLabelValues(portal).Inc()
}

// SubmissionOutcome counts one offer outcome
func (r *Recorder) SubmissionOutcome(portal, outcome string) {
	r.submissions.WithLabelValues(portal, outcome).Inc()
}

// RunFinished records a finished session
func (r *Recorder) RunFinished(portal string, state domain.RunState, duration time.Duration) {
	r.runs.WithLabelValues(portal, string(state)).Inc()
	r.runDuration.WithLabelValues(portal).Observe(duration.Seconds())
}

// RecordRequest records metrics for an HTTP request
func (r *Recorder) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	r.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	r.httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// Handler returns the HTTP handler exporting this recorder's registry
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// classifyStatus groups an HTTP status code into its class
func classifyStatus(statusCode int) string {
	if statusCode >= 100 && statusCode < 600 {
		return strconv.Itoa(statusCode/100) + "xx"
	}
	return "unknown"
}
