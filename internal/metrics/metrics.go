// Package metrics exposes Prometheus collectors for analysis runs,
// recommendations, imports and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cardwise"

// Metrics holds every collector. It satisfies analysis.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	RunIterations   prometheus.Histogram
	Recommendations prometheus.Counter
	RecommendSize   prometheus.Histogram
	ImportedRows    *prometheus.CounterVec
	RejectedRows    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by final status",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_run_duration_seconds",
			Help:      "Wall time of analysis runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		RunIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kmeans_iterations",
			Help:      "Lloyd iterations of the winning k-means restart",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),
		Recommendations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_served_total",
			Help:      "Recommendations returned to callers",
		}),
		RecommendSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendations_per_request",
			Help:      "Recommendations returned per request",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 10},
		}),
		ImportedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_rows_total",
			Help:      "Rows stored by ingestion",
		}, []string{"kind"}),
		RejectedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_rows_total",
			Help:      "Rows rejected by ingestion",
		}, []string{"kind"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of API handlers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunIterations,
		m.Recommendations,
		m.RecommendSize,
		m.ImportedRows,
		m.RejectedRows,
		m.RequestDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status model.RunStatus, duration time.Duration, iterations int) {
	m.RunsTotal.WithLabelValues(string(status)).Inc()
	m.RunDuration.Observe(duration.Seconds())
	if iterations > 0 {
		m.RunIterations.Observe(float64(iterations))
	}
}

// ObserveRecommendations records one recommendation request.
func (m *Metrics) ObserveRecommendations(count int) {
	m.Recommendations.Add(float64(count))
	m.RecommendSize.Observe(float64(count))
}

// ObserveImport records an ingestion batch.
func (m *Metrics) ObserveImport(kind string, imported, rejected int) {
	m.ImportedRows.WithLabelValues(kind).Add(float64(imported))
	m.RejectedRows.WithLabelValues(kind).Add(float64(rejected))
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(method, route string, code int, duration time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(duration.Seconds())
}
