// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/litmine/pkg/types"
)

const namespace = "litmine"

// Metrics holds the Prometheus collectors for litmine. It satisfies
// search.Recorder and enrich.Recorder.
type Metrics struct {
	// SearchRequests counts backend calls by backend and result (ok, empty, error).
	SearchRequests *prometheus.CounterVec

	// SearchDuration observes backend latency in seconds.
	SearchDuration *prometheus.HistogramVec

	// SearchResults observes the number of articles a backend returned.
	SearchResults *prometheus.HistogramVec

	// EnrichOutcomes counts enriched articles by pass mode and outcome.
	EnrichOutcomes *prometheus.CounterVec

	// EnrichDuration observes resolve plus fetch time per article.
	EnrichDuration *prometheus.HistogramVec

	// ArticlesSaved counts article rows written by the project store.
	ArticlesSaved prometheus.Counter

	// HTTPRequests counts API requests by method, route pattern and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes API latency by route pattern.
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors with reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SearchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Search backend calls by backend and result",
		}, []string{"backend", "result"}),
		SearchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search backend latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"backend"}),
		SearchResults: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Articles returned per backend call",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500},
		}, []string{"backend"}),
		EnrichOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "articles_total",
			Help:      "Enriched articles by pass mode and outcome",
		}, []string{"mode", "outcome"}),
		EnrichDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "article_duration_seconds",
			Help:      "Time to resolve, fetch and parse one article",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"outcome"}),
		ArticlesSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "articles_saved_total",
			Help:      "Article rows inserted or updated",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveSearch records one backend call.
func (m *Metrics) ObserveSearch(backend string, results int, err error, elapsed time.Duration) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case results == 0:
		result = "empty"
	}
	m.SearchRequests.WithLabelValues(backend, result).Inc()
	m.SearchDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
	if err == nil {
		m.SearchResults.WithLabelValues(backend).Observe(float64(results))
	}
}

// ObserveEnrichment records the outcome of one article.
func (m *Metrics) ObserveEnrichment(mode string, outcome types.Outcome, elapsed time.Duration) {
	m.EnrichOutcomes.WithLabelValues(mode, string(outcome)).Inc()
	m.EnrichDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

// ObserveSaved records n article rows written by the store.
func (m *Metrics) ObserveSaved(n int) {
	m.ArticlesSaved.Add(float64(n))
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
