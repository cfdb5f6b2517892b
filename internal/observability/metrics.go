package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the HTTP surface and the import
// pipeline.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	importRows      *prometheus.CounterVec
	importCommits   *prometheus.CounterVec
	importRollbacks *prometheus.CounterVec
	commitDuration  prometheus.Histogram
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "equinox_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "equinox_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "equinox_import_rows_total",
		Help: "Validated import rows by division and resulting status.",
	}, []string{"division", "status"})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "equinox_import_commits_total",
		Help: "Import commit attempts by result.",
	}, []string{"result"})
	rollbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "equinox_import_rollbacks_total",
		Help: "Import rollback attempts by result.",
	}, []string{"result"})
	commitDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "equinox_import_commit_duration_seconds",
		Help:    "Wall time of import commits.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	registry.MustRegister(requests, duration, rows, commits, rollbacks, commitDuration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		importRows:      rows,
		importCommits:   commits,
		importRollbacks: rollbacks,
		commitDuration:  commitDuration,
	}
}

// Handler returns the http.Handler serving /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry so other packages can add collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveRows adds count rows of the given status for a division.
func (m *Metrics) ObserveRows(division, status string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.importRows.WithLabelValues(division, status).Add(float64(count))
}

// ObserveCommit records a commit outcome and its duration.
func (m *Metrics) ObserveCommit(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.importCommits.WithLabelValues(result(err)).Inc()
	m.commitDuration.Observe(elapsed.Seconds())
}

// ObserveRollback records a rollback outcome.
func (m *Metrics) ObserveRollback(err error) {
	if m == nil {
		return
	}
	m.importRollbacks.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
