// Package metrics exposes crawl engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitecrawl"

// Failure reasons recorded by FetchFailures.
const (
	ReasonSession  = "session"
	ReasonNavigate = "navigate"
	ReasonSource   = "source"
	ReasonTimeout  = "timeout"
	ReasonRobots   = "robots"
	ReasonExtract  = "extract"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	PagesEmitted   prometheus.Counter
	URLsEnqueued   prometheus.Counter
	FetchFailures  *prometheus.CounterVec
	Reconnects     prometheus.Counter
	FetchesActive  prometheus.Gauge
	WorkersActive  prometheus.Gauge
	FetchDurations prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_emitted_total",
			Help:      "Total number of pages emitted to the consumer",
		}),
		URLsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_enqueued_total",
			Help:      "Total number of URLs admitted to the frontier",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Total number of abandoned fetches by reason",
		}, []string{"reason"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_reconnects_total",
			Help:      "Total number of session reconnects after a lost session",
		}),
		FetchesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetches_in_flight",
			Help:      "Number of fetches holding a throttle permit",
		}),
		WorkersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Number of running crawl workers",
		}),
		FetchDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent navigating and reading page sources",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	reg.MustRegister(
		m.PagesEmitted,
		m.URLsEnqueued,
		m.FetchFailures,
		m.Reconnects,
		m.FetchesActive,
		m.WorkersActive,
		m.FetchDurations,
	)
	return m
}

// Handler serves the collectors gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) PageEmitted() {
	if m != nil {
		m.PagesEmitted.Inc()
	}
}

func (m *Metrics) URLEnqueued() {
	if m != nil {
		m.URLsEnqueued.Inc()
	}
}

func (m *Metrics) FetchFailed(reason string) {
	if m != nil {
		m.FetchFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Reconnected() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

// FetchStarted marks a fetch in flight and returns a func that records
// its duration in seconds and clears the mark.
func (m *Metrics) FetchStarted() func(seconds float64) {
	if m == nil {
		return func(float64) {}
	}
	m.FetchesActive.Inc()
	return func(seconds float64) {
		m.FetchesActive.Dec()
		m.FetchDurations.Observe(seconds)
	}
}

func (m *Metrics) WorkerStarted() {
	if m != nil {
		m.WorkersActive.Inc()
	}
}

func (m *Metrics) WorkerStopped() {
	if m != nil {
		m.WorkersActive.Dec()
	}
}
