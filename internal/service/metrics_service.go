package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smart-student/edu-import-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the import API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	runsStarted     *prometheus.CounterVec
	runsFinished    *prometheus.CounterVec
	rowsProcessed   prometheus.Counter
	rowsRejected    prometheus.Counter
	batchesOK       *prometheus.CounterVec
	batchesFailed   *prometheus.CounterVec
	runDuration     prometheus.Histogram
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

	runsStarted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_runs_started_total",
		Help: "Import runs started, by kind",
	}, []string{"kind"})

	runsFinished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_runs_finished_total",
		Help: "Import runs finished, by kind and terminal phase",
	}, []string{"kind", "phase"})

	rowsProcessed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_rows_processed_total",
		Help: "Input rows processed across all runs",
	})

	rowsRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_rows_rejected_total",
		Help: "Input rows rejected with a row-level error",
	})

	batchesOK := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replication_batches_total",
		Help: "Replication batches accepted, by backend",
	}, []string{"backend"})

	batchesFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replication_batches_failed_total",
		Help: "Replication batches rejected, by backend",
	}, []string{"backend"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "import_run_duration_seconds",
		Help:    "Wall-clock duration of import runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, runsStarted, runsFinished,
		rowsProcessed, rowsRejected, batchesOK, batchesFailed, runDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		runsStarted:     runsStarted,
		runsFinished:    runsFinished,
		rowsProcessed:   rowsProcessed,
		rowsRejected:    rowsRejected,
		batchesOK:       batchesOK,
		batchesFailed:   batchesFailed,
		runDuration:     runDuration,
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

// RunStarted counts a new import run.
func (m *MetricsService) RunStarted(kind models.RunKind) {
	if m == nil {
		return
	}
	m.runsStarted.WithLabelValues(string(kind)).Inc()
}

// RunFinished counts a finished run and observes its duration.
func (m *MetricsService) RunFinished(kind models.RunKind, phase models.RunPhase, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsFinished.WithLabelValues(string(kind), string(phase)).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// ObserveRows counts processed and rejected rows for one run.
func (m *MetricsService) ObserveRows(processed, rejected int) {
	if m == nil {
		return
	}
	m.rowsProcessed.Add(float64(processed))
	m.rowsRejected.Add(float64(rejected))
}

// ObserveBatch counts one replication batch outcome.
func (m *MetricsService) ObserveBatch(backend string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.batchesOK.WithLabelValues(backend).Inc()
	} else {
		m.batchesFailed.WithLabelValues(backend).Inc()
	}
}
