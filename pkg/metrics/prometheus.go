// Package metrics provides Prometheus metrics for the velopick scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Contest metrics
	predictionsSubmitted prometheus.Counter
	predictionsRejected  *prometheus.CounterVec
	predictionsScored    prometheus.Counter
	resultCommits        *prometheus.CounterVec
	commitLatency        prometheus.Histogram
	scoresWritten        prometheus.Counter
	idempotentReplays    prometheus.Counter

	// Standings projection
	standingsBuildLatency prometheus.Histogram
	standingsCache        *prometheus.CounterVec
	standingsParticipants prometheus.Gauge

	// Event bus
	eventsPublished *prometheus.CounterVec

	// Recompute queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Recompute workers
	workerCount         prometheus.Gauge
	workerActiveCount   prometheus.Gauge
	workerJobLatency    prometheus.Histogram
	workerErrors        prometheus.Counter
	workerJobsCompleted prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
	rateLimited         prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors land on prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "velopick",
		subsystem:        "contest",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.predictionsSubmitted = m.counter("predictions_submitted_total", "Predictions accepted before the registration deadline")
	m.predictionsRejected = m.counterVec("predictions_rejected_total", "Predictions rejected at submission", "reason")
	m.predictionsScored = m.counter("predictions_scored_total", "Predictions scored by result commits and recomputes")
	m.resultCommits = m.counterVec("result_commits_total", "Result commits by outcome", "outcome")
	m.commitLatency = m.histogram("result_commit_latency_milliseconds", "Latency of the per-race score commit workflow")
	m.scoresWritten = m.counter("scores_written_total", "Score rows inserted")
	m.idempotentReplays = m.counter("idempotent_replays_total", "Mutating requests short-circuited by Idempotency-Key")

	m.standingsBuildLatency = m.histogram("standings_build_latency_milliseconds", "Time spent building the standings projection")
	m.standingsCache = m.counterVec("standings_cache_total", "Standings cache lookups", "result")
	m.standingsParticipants = m.gauge("standings_participants", "Participants with at least one score row")

	m.eventsPublished = m.counterVec("events_published_total", "Events published on the internal bus", "topic", "outcome")

	m.queueSize = m.gauge("recompute_queue_size", "Pending recompute jobs")
	m.queueCapacity = m.gauge("recompute_queue_capacity", "Recompute queue capacity")
	m.queueEnqueued = m.counter("recompute_queue_enqueued_total", "Recompute jobs enqueued")
	m.queueDequeued = m.counter("recompute_queue_dequeued_total", "Recompute jobs dequeued")
	m.queueEnqueueErrors = m.counter("recompute_queue_enqueue_errors_total", "Recompute jobs rejected by a full or closed queue")

	m.workerCount = m.gauge("recompute_workers", "Configured recompute workers")
	m.workerActiveCount = m.gauge("recompute_workers_active", "Recompute workers currently running a job")
	m.workerJobLatency = m.histogram("recompute_job_latency_milliseconds", "Recompute job latency")
	m.workerErrors = m.counter("recompute_job_errors_total", "Recompute jobs that failed")
	m.workerJobsCompleted = m.counter("recompute_jobs_completed_total", "Recompute jobs that finished without error")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by route, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total", "HTTP responses with status >= 400", "endpoint", "method", "error_type")
	m.rateLimited = m.counter("http_rate_limited_total", "Requests rejected by the per-IP rate limiter")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "operation")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// Manager-level recorders. Package-level wrappers below use the global manager.

func (m *Manager) RecordPredictionSubmitted() {
	if m.enabled {
		m.predictionsSubmitted.Inc()
	}
}

func (m *Manager) RecordPredictionRejected(reason string) {
	if m.enabled {
		m.predictionsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Manager) RecordPredictionsScored(n int) {
	if m.enabled {
		m.predictionsScored.Add(float64(n))
	}
}

func (m *Manager) RecordResultCommit(outcome string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.resultCommits.WithLabelValues(outcome).Inc()
	m.commitLatency.Observe(latencyMs)
}

func (m *Manager) RecordScoresWritten(n int) {
	if m.enabled {
		m.scoresWritten.Add(float64(n))
	}
}

func (m *Manager) RecordIdempotentReplay() {
	if m.enabled {
		m.idempotentReplays.Inc()
	}
}

func (m *Manager) RecordStandingsBuild(latencyMs float64, participants int) {
	if !m.enabled {
		return
	}
	m.standingsBuildLatency.Observe(latencyMs)
	m.standingsParticipants.Set(float64(participants))
}

func (m *Manager) RecordStandingsCache(hit bool) {
	if !m.enabled {
		return
	}
	if hit {
		m.standingsCache.WithLabelValues("hit").Inc()
		return
	}
	m.standingsCache.WithLabelValues("miss").Inc()
}

func (m *Manager) RecordEventPublished(topic string, err error) {
	if !m.enabled {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.eventsPublished.WithLabelValues(topic, outcome).Inc()
}

func (m *Manager) UpdateQueueSize(size int) {
	if m.enabled {
		m.queueSize.Set(float64(size))
	}
}

func (m *Manager) UpdateQueueCapacity(capacity int) {
	if m.enabled {
		m.queueCapacity.Set(float64(capacity))
	}
}

func (m *Manager) RecordQueueEnqueue() {
	if m.enabled {
		m.queueEnqueued.Inc()
	}
}

func (m *Manager) RecordQueueDequeue() {
	if m.enabled {
		m.queueDequeued.Inc()
	}
}

func (m *Manager) RecordQueueEnqueueError() {
	if m.enabled {
		m.queueEnqueueErrors.Inc()
	}
}

func (m *Manager) UpdateWorkerCount(count int) {
	if m.enabled {
		m.workerCount.Set(float64(count))
	}
}

func (m *Manager) UpdateWorkerActiveCount(count int) {
	if m.enabled {
		m.workerActiveCount.Set(float64(count))
	}
}

func (m *Manager) RecordWorkerJob(latencyMs float64, err error) {
	if !m.enabled {
		return
	}
	m.workerJobLatency.Observe(latencyMs)
	if err != nil {
		m.workerErrors.Inc()
		return
	}
	m.workerJobsCompleted.Inc()
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func (m *Manager) RecordHTTPError(endpoint, method, errorType string) {
	if m.enabled {
		m.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

func (m *Manager) RecordRateLimited() {
	if m.enabled {
		m.rateLimited.Inc()
	}
}

func (m *Manager) RecordStoreOperation(operation string, latencyMs float64, err error) {
	if !m.enabled {
		return
	}
	m.storeLatency.WithLabelValues(operation).Observe(latencyMs)
	if err != nil {
		m.storeErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) {
	if m.enabled {
		m.systemMemoryUsage.Set(float64(bytes))
	}
}

func (m *Manager) UpdateSystemGoroutineCount(count int) {
	if m.enabled {
		m.systemGoroutineCount.Set(float64(count))
	}
}

// RecordPredictionSubmitted increments the accepted predictions counter.
func RecordPredictionSubmitted() { globalManager.RecordPredictionSubmitted() }

// RecordPredictionRejected counts a rejected submission by reason.
func RecordPredictionRejected(reason string) { globalManager.RecordPredictionRejected(reason) }

// RecordPredictionsScored adds n scored predictions.
func RecordPredictionsScored(n int) { globalManager.RecordPredictionsScored(n) }

// RecordResultCommit records a commit outcome ("ok", "invalid", "error") and its latency.
func RecordResultCommit(outcome string, latencyMs float64) {
	globalManager.RecordResultCommit(outcome, latencyMs)
}

// RecordScoresWritten adds n inserted score rows.
func RecordScoresWritten(n int) { globalManager.RecordScoresWritten(n) }

// RecordIdempotentReplay counts a request answered from the idempotency cache.
func RecordIdempotentReplay() { globalManager.RecordIdempotentReplay() }

// RecordStandingsBuild records a standings rebuild.
func RecordStandingsBuild(latencyMs float64, participants int) {
	globalManager.RecordStandingsBuild(latencyMs, participants)
}

// RecordStandingsCache records a cache hit or miss.
func RecordStandingsCache(hit bool) { globalManager.RecordStandingsCache(hit) }

// RecordEventPublished records a publish attempt on topic.
func RecordEventPublished(topic string, err error) { globalManager.RecordEventPublished(topic, err) }

// UpdateQueueSize sets the pending recompute job count.
func UpdateQueueSize(size int) { globalManager.UpdateQueueSize(size) }

// UpdateQueueCapacity sets the recompute queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.UpdateQueueCapacity(capacity) }

// RecordQueueEnqueue increments the enqueued counter.
func RecordQueueEnqueue() { globalManager.RecordQueueEnqueue() }

// RecordQueueDequeue increments the dequeued counter.
func RecordQueueDequeue() { globalManager.RecordQueueDequeue() }

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() { globalManager.RecordQueueEnqueueError() }

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.UpdateWorkerCount(count) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.UpdateWorkerActiveCount(count) }

// RecordWorkerJob records a finished recompute job.
func RecordWorkerJob(latencyMs float64, err error) { globalManager.RecordWorkerJob(latencyMs, err) }

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordHTTPError records an error response.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.RecordHTTPError(endpoint, method, errorType)
}

// RecordRateLimited counts a throttled request.
func RecordRateLimited() { globalManager.RecordRateLimited() }

// RecordStoreOperation records store latency and failures.
func RecordStoreOperation(operation string, latencyMs float64, err error) {
	globalManager.RecordStoreOperation(operation, latencyMs, err)
}

// UpdateSystemMemoryUsage sets heap usage.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.UpdateSystemMemoryUsage(bytes) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.UpdateSystemGoroutineCount(count) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
