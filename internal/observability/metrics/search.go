package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Ensure SearchMetrics implements driven.SearchMetrics
var _ driven.SearchMetrics = (*SearchMetrics)(nil)

// stageBuckets cover the per-retriever budgets (80-500ms) with headroom
var stageBuckets = []float64{.005, .01, .025, .05, .08, .1, .15, .25, .5, 1, 2.5}

// SearchMetrics records query pipeline and HTTP metrics on a private registry
type SearchMetrics struct {
	registry *prometheus.Registry
	service  string

	searchesTotal     *prometheus.CounterVec
	searchDuration    *prometheus.HistogramVec
	stageDuration     *prometheus.HistogramVec
	retrieverFailures *prometheus.CounterVec
	rerankFallbacks   prometheus.Counter
	scopeFallbacks    prometheus.Counter

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

// NewSearchMetrics creates and registers every collector
func NewSearchMetrics(service string) *SearchMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &SearchMetrics{
		registry: registry,
		service:  service,
		searchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "lightfast",
				Subsystem:   "search",
				Name:        "requests_total",
				Help:        "Search requests by resolved mode, router scope and status code.",
				ConstLabels: constLabels,
			},
			[]string{"mode", "scope", "status"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   "lightfast",
				Subsystem:   "search",
				Name:        "duration_seconds",
				Help:        "End-to-end search latency in seconds.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"mode"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   "lightfast",
				Subsystem:   "search",
				Name:        "stage_duration_seconds",
				Help:        "Per-stage latency in seconds.",
				Buckets:     stageBuckets,
				ConstLabels: constLabels,
			},
			[]string{"stage"},
		),
		retrieverFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "lightfast",
				Subsystem:   "search",
				Name:        "retriever_failures_total",
				Help:        "Retriever calls that failed or timed out.",
				ConstLabels: constLabels,
			},
			[]string{"signal"},
		),
		rerankFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "lightfast",
			Subsystem:   "search",
			Name:        "rerank_fallbacks_total",
			Help:        "Queries served in fused order because the reranker failed.",
			ConstLabels: constLabels,
		}),
		scopeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "lightfast",
			Subsystem:   "search",
			Name:        "scope_fallbacks_total",
			Help:        "Workspace queries widened to the organization aggregator.",
			ConstLabels: constLabels,
		}),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lightfast",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"service", "method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lightfast",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method", "path"},
		),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "lightfast",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(
		m.searchesTotal,
		m.searchDuration,
		m.stageDuration,
		m.retrieverFailures,
		m.rerankFallbacks,
		m.scopeFallbacks,
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *SearchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SearchMetrics) ObserveSearch(mode domain.SearchMode, scope domain.Scope, status string, took time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if scope == "" {
		scope = "unknown"
	}
	m.searchesTotal.WithLabelValues(string(mode), string(scope), status).Inc()
	m.searchDuration.WithLabelValues(string(mode)).Observe(took.Seconds())
}

func (m *SearchMetrics) ObserveStage(stage string, took time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(took.Seconds())
}

func (m *SearchMetrics) RetrieverFailed(signal domain.Signal) {
	m.retrieverFailures.WithLabelValues(string(signal)).Inc()
}

func (m *SearchMetrics) RerankFallback() {
	m.rerankFallbacks.Inc()
}

func (m *SearchMetrics) ScopeFallback() {
	m.scopeFallbacks.Inc()
}

// Middleware records request counts, latency and in-flight requests
func (m *SearchMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
