// Package metrics provides Prometheus metrics for the mebeatme PPI service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	scoreBuckets     []float64
	registry         prometheus.Registerer

	// Ledger
	recordsAdded         prometheus.Counter
	recordsReplaced      prometheus.Counter
	recordsRemoved       prometheus.Counter
	removeMisses         prometheus.Counter
	invalidInputs        prometheus.Counter
	liveRecords          prometheus.Gauge
	bestScore            prometheus.Gauge
	scoreDistribution    *prometheus.HistogramVec
	ledgerOpLatency      *prometheus.HistogramVec
	bestRecomputeLatency prometheus.Histogram

	// Import pipeline
	importQueueCapacity    prometheus.Gauge
	importQueueSize        prometheus.Gauge
	importQueueUtilization prometheus.Gauge
	importEnqueued         prometheus.Counter
	importDequeued         prometheus.Counter
	importRejected         *prometheus.CounterVec
	importDuplicateBatches prometheus.Counter
	importRunsProcessed    prometheus.Counter
	importRunErrors        prometheus.Counter
	importBatchLatency     prometheus.Histogram
	importWorkers          prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByType        *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

// ppiScoreBuckets brackets the default best-score floor of 131.5.
var ppiScoreBuckets = []float64{50, 100, 131.5, 200, 300, 500, 750, 1000, 1500, 2000} //nolint:gochecknoglobals // bucket table

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry), WithScoreBuckets(ppiScoreBuckets))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mebeatme",
		subsystem:        "ppi",
		histogramBuckets: prometheus.DefBuckets,
		scoreBuckets:     prometheus.ExponentialBuckets(10, 2, 10),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.recordsAdded = m.counter("records_added_total", "Performance records stored")
	m.recordsReplaced = m.counter("records_replaced_total", "Stores that replaced a record with the same id")
	m.recordsRemoved = m.counter("records_removed_total", "Performance records removed")
	m.removeMisses = m.counter("remove_misses_total", "Remove requests for unknown ids")
	m.invalidInputs = m.counter("invalid_inputs_total", "Submissions rejected for non-positive distance or time")
	m.liveRecords = m.gauge("live_records", "Records currently held by the ledger")
	m.bestScore = m.gauge("best_score", "Current best score including the configured floor")
	m.scoreDistribution = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score",
		Help:      "Distribution of computed scores by distance bucket",
		Buckets:   m.scoreBuckets,
	}, []string{"bucket"})
	m.ledgerOpLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_operation_latency_milliseconds",
		Help:      "Ledger operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})
	m.bestRecomputeLatency = m.histogram("best_recompute_latency_milliseconds",
		"Full best score recomputation latency in milliseconds", m.histogramBuckets)

	m.importQueueCapacity = m.gauge("import_queue_capacity", "Maximum import queue capacity")
	m.importQueueSize = m.gauge("import_queue_size", "Import jobs waiting in the queue")
	m.importQueueUtilization = m.gauge("import_queue_utilization_ratio", "Import queue size / capacity")
	m.importEnqueued = m.counter("import_enqueued_total", "Import jobs enqueued")
	m.importDequeued = m.counter("import_dequeued_total", "Import jobs dequeued")
	m.importRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "import_rejected_total",
		Help:      "Import jobs rejected by the queue",
	}, []string{"reason"})
	m.importDuplicateBatches = m.counter("import_duplicate_batches_total", "Import batches skipped as already seen")
	m.importRunsProcessed = m.counter("import_runs_processed_total", "Imported runs stored")
	m.importRunErrors = m.counter("import_run_errors_total", "Imported runs that failed validation")
	m.importBatchLatency = m.histogram("import_batch_latency_milliseconds",
		"Time to apply one import batch in milliseconds", m.histogramBuckets)
	m.importWorkers = m.gauge("import_workers", "Running import workers")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "Errors by endpoint",
	}, []string{"endpoint", "method", "error_type"})
	m.errorsByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_type_total",
		Help:      "Errors by type and severity",
	}, []string{"error_type", "severity"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordRecordAdded counts a stored record and observes its score.
func RecordRecordAdded(bucket string, score float64, replaced bool) {
	globalManager.recordsAdded.Inc()
	if replaced {
		globalManager.recordsReplaced.Inc()
	}
	globalManager.scoreDistribution.WithLabelValues(bucket).Observe(score)
}

// RecordRecordRemoved counts a remove request; misses are tracked separately.
func RecordRecordRemoved(found bool) {
	if found {
		globalManager.recordsRemoved.Inc()
		return
	}
	globalManager.removeMisses.Inc()
}

// RecordInvalidInput counts a rejected submission.
func RecordInvalidInput() {
	globalManager.invalidInputs.Inc()
}

// UpdateLedgerState sets the live record count and best score gauges.
func UpdateLedgerState(records int, best float64) {
	globalManager.liveRecords.Set(float64(records))
	globalManager.bestScore.Set(best)
}

// RecordLedgerLatency observes a ledger operation.
func RecordLedgerLatency(operation string, latencyMs float64) {
	globalManager.ledgerOpLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordBestRecompute observes a full best score rescan.
func RecordBestRecompute(latencyMs float64) {
	globalManager.bestRecomputeLatency.Observe(latencyMs)
}

// UpdateImportQueue sets capacity, size and utilisation of the import queue.
func UpdateImportQueue(size, capacity int) {
	globalManager.importQueueCapacity.Set(float64(capacity))
	globalManager.importQueueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.importQueueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordImportEnqueued counts an accepted import job.
func RecordImportEnqueued() {
	globalManager.importEnqueued.Inc()
}

// RecordImportDequeued counts a job handed to a worker.
func RecordImportDequeued() {
	globalManager.importDequeued.Inc()
}

// RecordImportRejected counts a job the queue refused.
func RecordImportRejected(reason string) {
	globalManager.importRejected.WithLabelValues(reason).Inc()
}

// RecordImportDuplicateBatch counts a skipped batch.
func RecordImportDuplicateBatch() {
	globalManager.importDuplicateBatches.Inc()
}

// RecordImportBatch records the outcome of one applied batch.
func RecordImportBatch(stored, failed int, latencyMs float64) {
	globalManager.importRunsProcessed.Add(float64(stored))
	globalManager.importRunErrors.Add(float64(failed))
	globalManager.importBatchLatency.Observe(latencyMs)
}

// UpdateImportWorkers sets the running worker gauge.
func UpdateImportWorkers(count int) {
	globalManager.importWorkers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
