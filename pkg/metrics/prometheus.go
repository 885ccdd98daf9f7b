package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds. Slot searches scan up to 1440 minutes per
// day and participant, so the tail is wider than the prometheus default.
var defaultBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// Manager manages all Prometheus metrics for the huddle service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scheduling
	slotSearches       prometheus.Counter
	slotSearchErrors   prometheus.Counter
	slotSearchLatency  prometheus.Histogram
	slotSearchDays     prometheus.Histogram
	conflictsDetected  prometheus.Counter
	eventsCreated      *prometheus.CounterVec
	eventsSkipped      *prometheus.CounterVec
	eventsDeleted      prometheus.Counter
	recurrenceFailures prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec
	storedUsers  prometheus.Gauge
	storedEvents prometheus.Gauge

	// Import queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Import workers
	importsProcessed        prometheus.Counter
	importsFailed           prometheus.Counter
	importsDuplicate        prometheus.Counter
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// Feeds
	feedRefreshes *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton behind the package-level recorders

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // served on /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "huddle",
		subsystem:        "scheduler",
		histogramBuckets: defaultBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.slotSearches = m.counter("slot_searches_total", "Total number of multi-participant slot searches")
	m.slotSearchErrors = m.counter("slot_search_errors_total", "Slot searches rejected or failed")
	m.slotSearchLatency = m.histogram("slot_search_latency_milliseconds", "Slot search latency in milliseconds", m.histogramBuckets)
	m.slotSearchDays = m.histogram("slot_search_days_found", "Days with at least one feasible slot per search",
		prometheus.LinearBuckets(0, 1, 15))
	m.conflictsDetected = m.counter("conflicts_detected_total", "Existing events found overlapping a proposed write")
	m.eventsCreated = m.counterVec("events_created_total", "Schedule events written by kind", "kind")
	m.eventsSkipped = m.counterVec("events_skipped_total", "Schedule events not written, by reason", "reason")
	m.eventsDeleted = m.counter("events_deleted_total", "Schedule events deleted")
	m.recurrenceFailures = m.counter("recurrence_failures_total", "Recurrence occurrences that could not be generated or stored")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", "operation")
	m.storedUsers = m.gauge("stored_users", "Registered users")
	m.storedEvents = m.gauge("stored_events", "Schedule events across all users")

	m.queueSize = m.gauge("import_queue_size", "Current number of queued import entries")
	m.queueCapacity = m.gauge("import_queue_capacity", "Maximum import queue capacity")
	m.queueUtilization = m.gauge("import_queue_utilization_ratio", "Import queue size over capacity")
	m.queueEnqueued = m.counter("import_queue_enqueued_total", "Import entries enqueued")
	m.queueDequeued = m.counter("import_queue_dequeued_total", "Import entries dequeued")
	m.queueEnqueueErrors = m.counter("import_queue_enqueue_errors_total", "Import entries rejected by the queue")

	m.importsProcessed = m.counter("imports_processed_total", "Import entries handled by workers")
	m.importsFailed = m.counter("imports_failed_total", "Import entries that failed to be stored")
	m.importsDuplicate = m.counter("imports_duplicate_total", "Import entries already imported before")
	m.workerActiveCount = m.gauge("import_workers_active", "Import workers currently running")
	m.workerProcessingLatency = m.histogram("import_worker_latency_milliseconds", "Time to store one import entry", m.histogramBuckets)

	m.feedRefreshes = m.counterVec("feed_refreshes_total", "Calendar feed refreshes by outcome", "status")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")
	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.rateLimited = m.counterVec("http_rate_limited_total", "Requests rejected by the rate limiter", "endpoint")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap memory in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of running goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds", m.histogramBuckets)
}

// RecordSlotSearch records a completed slot search.
func RecordSlotSearch(latencyMs float64, daysFound int) {
	globalManager.slotSearches.Inc()
	globalManager.slotSearchLatency.Observe(latencyMs)
	globalManager.slotSearchDays.Observe(float64(daysFound))
}

// RecordSlotSearchError increments the failed slot search counter.
func RecordSlotSearchError() {
	globalManager.slotSearchErrors.Inc()
}

// RecordConflicts adds n detected conflicts.
func RecordConflicts(n int) {
	if n > 0 {
		globalManager.conflictsDetected.Add(float64(n))
	}
}

// RecordEventCreated increments the created counter for kind.
func RecordEventCreated(kind string) {
	globalManager.eventsCreated.WithLabelValues(kind).Inc()
}

// RecordEventSkipped increments the skipped counter for reason.
func RecordEventSkipped(reason string) {
	globalManager.eventsSkipped.WithLabelValues(reason).Inc()
}

// RecordEventDeleted increments the deleted counter.
func RecordEventDeleted() {
	globalManager.eventsDeleted.Inc()
}

// RecordRecurrenceFailures adds n failed occurrences.
func RecordRecurrenceFailures(n int) {
	if n > 0 {
		globalManager.recurrenceFailures.Add(float64(n))
	}
}

// RecordStoreLatency records the latency of one store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateStoreCounts sets the stored user and event gauges.
func UpdateStoreCounts(users, events int) {
	globalManager.storedUsers.Set(float64(users))
	globalManager.storedEvents.Set(float64(events))
}

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordImportProcessed increments the processed import counter.
func RecordImportProcessed() {
	globalManager.importsProcessed.Inc()
}

// RecordImportFailed increments the failed import counter.
func RecordImportFailed() {
	globalManager.importsFailed.Inc()
}

// RecordImportDuplicate increments the duplicate import counter.
func RecordImportDuplicate() {
	globalManager.importsDuplicate.Inc()
}

// UpdateWorkerActiveCount sets the number of running import workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long one import entry took.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordFeedRefresh counts a feed refresh with its outcome ("ok" or "error").
func RecordFeedRefresh(status string) {
	globalManager.feedRefreshes.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited(endpoint string) {
	globalManager.rateLimited.WithLabelValues(endpoint).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Observe(ms)
}
