// Package metrics defines the Prometheus collectors of rankit searches and
// exposes them as a search.SearchMonitor.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes used as the status label.
const (
	StatusHit     = "hit"
	StatusEmpty   = "empty"
	StatusAborted = "aborted"
	StatusError   = "error"
)

// Metrics holds the Prometheus collectors of the search pipeline.
// It is safe for concurrent use by several searches.
type Metrics struct {
	SearchesTotal    *prometheus.CounterVec
	SearchesInFlight prometheus.Gauge
	SearchLatency    prometheus.Histogram
	ResultsCount     prometheus.Histogram
	EstimatedHits    prometheus.Histogram
	RuleStartsTotal  *prometheus.CounterVec
	BucketSize       *prometheus.HistogramVec
}

var _ search.SearchMonitor = (*Metrics)(nil)

// New creates the collectors under namespace and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total searches by status (hit, empty, aborted, error).",
			},
			[]string{"status"},
		),
		SearchesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "searches_in_flight",
				Help:      "Number of searches currently being ranked.",
			},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Search latency in seconds.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		ResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Number of documents returned per search.",
				Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
			},
		),
		EstimatedHits: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_estimated_hits",
				Help:      "Estimated total hits per search.",
				Buckets:   prometheus.ExponentialBuckets(1, 10, 7),
			},
		),
		RuleStartsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ranking_rule_starts_total",
				Help:      "Total ranking rule iterations started, by rule.",
			},
			[]string{"rule"},
		),
		BucketSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ranking_rule_bucket_size",
				Help:      "Number of documents per bucket returned by a ranking rule.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"rule"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.SearchesTotal,
		m.SearchesInFlight,
		m.SearchLatency,
		m.ResultsCount,
		m.EstimatedHits,
		m.RuleStartsTotal,
		m.BucketSize,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Start(_ string) {
	m.SearchesInFlight.Inc()
}

func (m *Metrics) RuleStarted(rule string, _ int, _ uint64) {
	m.RuleStartsTotal.WithLabelValues(rule).Inc()
}

func (m *Metrics) Bucket(rule string, _ int, size uint64) {
	m.BucketSize.WithLabelValues(rule).Observe(float64(size))
}

func (m *Metrics) Finish(documents []core.DocumentID, total uint64) {
	m.SearchesInFlight.Dec()
	status := StatusHit
	if total == 0 {
		status = StatusEmpty
	}
	m.SearchesTotal.WithLabelValues(status).Inc()
	m.ResultsCount.Observe(float64(len(documents)))
	m.EstimatedHits.Observe(float64(total))
}

func (m *Metrics) Abort(err error) {
	m.SearchesInFlight.Dec()
	status := StatusError
	if errors.Is(err, search.ErrSearchAborted) {
		status = StatusAborted
	}
	m.SearchesTotal.WithLabelValues(status).Inc()
}

// ObserveLatency records the duration of one search.
func (m *Metrics) ObserveLatency(d time.Duration) {
	m.SearchLatency.Observe(d.Seconds())
}

// Handler returns the scrape handler of gatherer, or of the default
// registry when gatherer is nil.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
