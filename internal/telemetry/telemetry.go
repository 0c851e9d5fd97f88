// Package telemetry exposes build and query counters over a dedicated
// prometheus registry.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors the pipeline and server report into.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched      prometheus.Counter
	PagesFailed       prometheus.Counter
	EmbeddingsCreated prometheus.Counter
	EmbeddingsFailed  prometheus.Counter
	GenerationsOK     prometheus.Counter
	GenerationsFailed prometheus.Counter
	SuggestRequests   prometheus.Counter
	BuildDuration     prometheus.Histogram
}

// New creates a registry with all collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.PagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anchormap", Name: "pages_fetched_total",
		Help: "Pages fetched and extracted successfully.",
	})
	m.PagesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anchormap", Name: "pages_failed_total",
		Help: "Pages that failed to fetch or extract.",
	})
	m.EmbeddingsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anchormap", Name: "embeddings_created_total",
		Help: "Embeddings stored in the vector store.",
	})
	m.EmbeddingsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anchormap", Name: "embeddings_failed_total",
		Help: "Embedding requests that failed.",
	})
	m.GenerationsOK = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anchormap", Name: "generations_total",
		Help: "Reason and anchor generations that succeeded.",
	})
	m.GenerationsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anchormap", Name: "generations_failed_total",
		Help: "Reason and anchor generations that failed.",
	})
	m.SuggestRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "anchormap", Name: "suggest_requests_total",
		Help: "Suggestion queries served.",
	})
	m.BuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "anchormap", Name: "build_duration_seconds",
		Help:    "Wall time of full index builds.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.registry.MustRegister(
		m.PagesFetched, m.PagesFailed,
		m.EmbeddingsCreated, m.EmbeddingsFailed,
		m.GenerationsOK, m.GenerationsFailed,
		m.SuggestRequests, m.BuildDuration,
	)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
