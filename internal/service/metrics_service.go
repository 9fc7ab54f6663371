package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/credassure/credassure-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// enforcement pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	evidenceIngested *prometheus.CounterVec
	violationsFound  *prometheus.CounterVec
	transitionDenied prometheus.Counter
	scanRuns         prometheus.Counter
	scanItems        prometheus.Counter
	scanDuration     prometheus.Histogram
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	evidenceIngested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evidence_ingested_total",
		Help: "Total pieces of mail evidence ingested, by classification",
	}, []string{"classification"})

	violationsFound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "violations_detected_total",
		Help: "Total procedural violations detected, by type and severity",
	}, []string{"type", "severity"})

	transitionDenied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transitions_rejected_total",
		Help: "Total evidence submissions rejected by the state machine",
	})

	scanRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deadline_scan_runs_total",
		Help: "Total deadline scanner runs",
	})

	scanItems := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deadline_scan_items_total",
		Help: "Total dispute items examined by the deadline scanner",
	})

	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deadline_scan_duration_seconds",
		Help:    "Duration of deadline scanner runs",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, dbQueryDuration,
		evidenceIngested, violationsFound, transitionDenied, scanRuns, scanItems, scanDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		dbQueryDuration:  dbQueryDuration,
		evidenceIngested: evidenceIngested,
		violationsFound:  violationsFound,
		transitionDenied: transitionDenied,
		scanRuns:         scanRuns,
		scanItems:        scanItems,
		scanDuration:     scanDuration,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordIngest counts one accepted piece of evidence.
func (m *MetricsService) RecordIngest(classification models.MailClassification) {
	if m == nil {
		return
	}
	m.evidenceIngested.WithLabelValues(string(classification)).Inc()
}

// RecordViolation counts one detected violation.
func (m *MetricsService) RecordViolation(t models.ViolationType, severity models.ViolationSeverity) {
	if m == nil {
		return
	}
	m.violationsFound.WithLabelValues(string(t), string(severity)).Inc()
}

// RecordRejectedTransition counts one state-machine rejection.
func (m *MetricsService) RecordRejectedTransition() {
	if m == nil {
		return
	}
	m.transitionDenied.Inc()
}

// RecordScanRun records one completed scanner run.
func (m *MetricsService) RecordScanRun(itemsScanned int, duration time.Duration) {
	if m == nil {
		return
	}
	m.scanRuns.Inc()
	m.scanItems.Add(float64(itemsScanned))
	m.scanDuration.Observe(duration.Seconds())
}
