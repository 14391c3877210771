package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	SpansDropped  *prometheus.CounterVec
	BatchesSent   prometheus.Counter
	BatchesFailed prometheus.Counter
	SpansExported prometheus.Counter
	FlushDuration prometheus.Histogram
	QueueDepth    prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON status API
type Snapshot struct {
	TotalRequests int64
	TotalErrors   int64
	SpansExported int64
	SpansDropped  int64
	BatchesSent   int64
	BatchesFailed int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracewire_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracewire_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Pipeline metrics
		SpansDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracewire_spans_dropped_total",
				Help: "Total number of spans dropped by the export pipeline",
			},
			[]string{"reason"},
		),
		BatchesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracewire_batches_sent_total",
				Help: "Total number of batches delivered to the collector",
			},
		),
		BatchesFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracewire_batch_attempts_failed_total",
				Help: "Total number of failed batch transmission attempts",
			},
		),
		SpansExported: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracewire_spans_exported_total",
				Help: "Total number of spans delivered to the collector",
			},
		),
		FlushDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracewire_flush_duration_seconds",
				Help:    "Successful batch transmission duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracewire_queue_depth",
				Help: "Number of spans currently buffered for export",
			},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracewire_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// ObserveActiveSpans registers a gauge fed by the recorder's live count.
func (m *Metrics) ObserveActiveSpans(f func() float64) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "tracewire_spans_active",
			Help: "Number of started but not yet ended spans",
		},
		f,
	)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordSpansDropped records spans lost to overflow, retry exhaustion, or
// shutdown
func (m *Metrics) RecordSpansDropped(count int, reason string) {
	m.SpansDropped.WithLabelValues(reason).Add(float64(count))

	m.mu.Lock()
	m.snapshot.SpansDropped += int64(count)
	m.mu.Unlock()
}

// RecordBatchExported records a successful batch transmission
func (m *Metrics) RecordBatchExported(spans int, duration time.Duration) {
	m.BatchesSent.Inc()
	m.SpansExported.Add(float64(spans))
	m.FlushDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.BatchesSent++
	m.snapshot.SpansExported += int64(spans)
	m.mu.Unlock()
}

// RecordBatchFailed records one failed transmission attempt
func (m *Metrics) RecordBatchFailed() {
	m.BatchesFailed.Inc()

	m.mu.Lock()
	m.snapshot.BatchesFailed++
	m.mu.Unlock()
}

// SetQueueDepth sets the current export buffer depth
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// GetSnapshot returns a copy of the current metric values
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
