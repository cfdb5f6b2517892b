package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded in the status label.
const (
	StatusSuccess   = "success"
	StatusRetry     = "retry"
	StatusPermanent = "permanent"
)

// Metrics holds the Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job collectors on registerer, or once on the
// default registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return buildMetrics(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Tracker instruments one job run. A nil *Metrics yields a no-op tracker.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	t := &Tracker{metrics: m, job: job, start: time.Now()}
	if t.active() {
		m.inFlight.WithLabelValues(job).Inc()
	}
	return t
}

func (t *Tracker) active() bool {
	return t != nil && t.metrics != nil && t.job != ""
}

// End records the outcome of the run and returns err unchanged. Errors
// wrapping asynq.SkipRetry count as permanent.
func (t *Tracker) End(err error) error {
	if !t.active() {
		return err
	}
	status := Status(err)
	if status != StatusSuccess {
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.inFlight.WithLabelValues(t.job).Dec()
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// Status maps a handler result to its status label.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, asynq.SkipRetry):
		return StatusPermanent
	default:
		return StatusRetry
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equinox_jobs_total",
			Help: "Job executions by job name and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equinox_jobs_failures_total",
			Help: "Failed job executions, retried or not.",
		}, []string{"job"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "equinox_jobs_in_flight",
			Help: "Job executions currently running.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "equinox_job_duration_seconds",
			Help:    "Duration in seconds of background job executions.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.inFlight, m.duration)
	return m
}
