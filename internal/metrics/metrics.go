package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Recorder owns the engine's collectors. Each Recorder has its own registry
// so tests can build as many as they like.
type Recorder struct {
	registry *prometheus.Registry

	bookings        *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	completions     prometheus.Counter
	sweepDeleted    prometheus.Counter
	sweepFailures   prometheus.Counter
	sweepDuration   prometheus.Histogram
	requestDuration *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		bookings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appointment_bookings_total",
				Help: "Booking and reschedule attempts by outcome",
			},
			[]string{"operation", "outcome"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appointment_slot_rejections_total",
				Help: "Slot validation rejections by reason code",
			},
			[]string{"code"},
		),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointment_completions_total",
			Help: "Appointments moved to completed and archived",
		}),
		sweepDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointment_retention_deleted_total",
			Help: "Completed appointments removed by the retention sweeper",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointment_retention_failures_total",
			Help: "Rows the retention sweeper failed to delete",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "appointment_retention_sweep_duration_seconds",
			Help:    "Duration of retention sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	r.registry.MustRegister(
		r.bookings,
		r.rejections,
		r.completions,
		r.sweepDeleted,
		r.sweepFailures,
		r.sweepDuration,
		r.requestDuration,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Recorder) Booking(operation, outcome string) {
	if r == nil {
		return
	}
	r.bookings.WithLabelValues(operation, outcome).Inc()
}

func (r *Recorder) Rejection(code string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(code).Inc()
}

func (r *Recorder) Completion() {
	if r == nil {
		return
	}
	r.completions.Inc()
}

func (r *Recorder) Sweep(deleted, failed int, seconds float64) {
	if r == nil {
		return
	}
	r.sweepDeleted.Add(float64(deleted))
	r.sweepFailures.Add(float64(failed))
	r.sweepDuration.Observe(seconds)
}

func (r *Recorder) Request(method, route, status string, seconds float64) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
