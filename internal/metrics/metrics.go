// Package metrics exposes Prometheus instruments for recomputes, scheduled
// jobs and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stash"

// Recompute outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeThrottled = "throttled"
	OutcomeShared    = "shared"
)

// Metrics holds every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg prometheus.Gatherer

	RecomputesTotal   *prometheus.CounterVec
	RecomputeDuration prometheus.Histogram
	ScoredBookmarks   prometheus.Counter
	SkippedVisits     prometheus.Counter
	VisitsLogged      prometheus.Counter
	VisitsPruned      prometheus.Counter
	BookmarksImported prometheus.Counter
	JobRunsTotal      *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all instruments on reg. A nil reg uses a fresh registry so
// several instances can coexist in tests.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{reg: reg}

	m.RecomputesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scoring",
		Name:      "recomputes_total",
		Help:      "Score recomputations by outcome",
	}, []string{"outcome"})

	m.RecomputeDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scoring",
		Name:      "recompute_duration_seconds",
		Help:      "Duration of one user's score recomputation",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	m.ScoredBookmarks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scoring",
		Name:      "scored_bookmarks_total",
		Help:      "Score rows written",
	})

	m.SkippedVisits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scoring",
		Name:      "skipped_visits_total",
		Help:      "Visit records ignored for a malformed timestamp",
	})

	m.VisitsLogged = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "visits",
		Name:      "logged_total",
		Help:      "Visits appended to the log",
	})

	m.VisitsPruned = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "visits",
		Name:      "pruned_total",
		Help:      "Visits deleted by the retention sweep",
	})

	m.BookmarksImported = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "bookmarks_total",
		Help:      "Bookmarks read from the import file",
	})

	m.JobRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job and status",
	}, []string{"job", "status"})

	m.HTTPRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern, method and status",
	}, []string{"route", "method", "status"})

	m.HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveRecompute records one recomputation.
func (m *Metrics) ObserveRecompute(outcome string, d time.Duration, scored, skipped int) {
	if m == nil {
		return
	}
	m.RecomputesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeFailed {
		m.RecomputeDuration.Observe(d.Seconds())
	}
	m.ScoredBookmarks.Add(float64(scored))
	m.SkippedVisits.Add(float64(skipped))
}

// VisitLogged counts an appended visit.
func (m *Metrics) VisitLogged() {
	if m == nil {
		return
	}
	m.VisitsLogged.Inc()
}

// Pruned counts deleted visits.
func (m *Metrics) Pruned(n int64) {
	if m == nil {
		return
	}
	m.VisitsPruned.Add(float64(n))
}

// Imported counts bookmarks read from an import file.
func (m *Metrics) Imported(n int) {
	if m == nil {
		return
	}
	m.BookmarksImported.Add(float64(n))
}

// JobRun records one scheduled job execution.
func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
