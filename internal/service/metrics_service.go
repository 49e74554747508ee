package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// placement engine.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	placementRuns     prometheus.Counter
	placementDuration prometheus.Histogram
	placedTotal       prometheus.Counter
	unplacedTotal     prometheus.Counter
	dbQueryDuration   *prometheus.HistogramVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	placementRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "placement_runs_total",
		Help: "Total number of placement runs executed",
	})

	placementDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "placement_run_duration_seconds",
		Help:    "Duration of placement runs",
		Buckets: prometheus.DefBuckets,
	})

	placedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "placement_sections_placed_total",
		Help: "Total exam sections placed across runs",
	})

	unplacedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "placement_sections_unplaced_total",
		Help: "Total exam sections left unplaced across runs",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, placementRuns, placementDuration, placedTotal, unplacedTotal, dbQueryDuration, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		placementRuns:     placementRuns,
		placementDuration: placementDuration,
		placedTotal:       placedTotal,
		unplacedTotal:     unplacedTotal,
		dbQueryDuration:   dbQueryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records per-request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObservePlacementRun records the outcome of one placement run.
func (m *MetricsService) ObservePlacementRun(placed, unplaced int, duration time.Duration) {
	if m == nil {
		return
	}
	m.placementRuns.Inc()
	m.placementDuration.Observe(duration.Seconds())
	m.placedTotal.Add(float64(placed))
	m.unplacedTotal.Add(float64(unplaced))
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}
