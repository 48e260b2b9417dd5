package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/shared/errs"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Capability metrics
	CapabilityCalls    *prometheus.CounterVec
	CapabilityDuration *prometheus.HistogramVec
	PermissionDenials  *prometheus.CounterVec
	Timeouts           *prometheus.CounterVec

	// Broker metrics
	PendingRequests prometheus.Gauge

	// Sandbox metrics
	SandboxesActive prometheus.Gauge
	SandboxesTotal  prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON stats API
type Snapshot struct {
	TotalRequests     int64
	TotalErrors       int64
	CapabilityCalls   int64
	Denials           int64
	Timeouts          int64
	ActiveSandboxes   int64
	ActiveConnections int64
	TotalDuration     float64 // sum of all request durations
	RequestCount      int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Capability metrics
		CapabilityCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_capability_calls_total",
				Help: "Total number of capability executions",
			},
			[]string{"domain", "operation", "code"},
		),
		CapabilityDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_capability_duration_seconds",
				Help:    "Capability execution duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"domain", "operation"},
		),
		PermissionDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_permission_denials_total",
				Help: "Total number of permission denials",
			},
			[]string{"domain"},
		),
		Timeouts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_timeouts_total",
				Help: "Total number of capability timeouts",
			},
			[]string{"domain"},
		),

		// Broker metrics
		PendingRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_pending_requests",
				Help: "Number of in-flight broker requests",
			},
		),

		// Sandbox metrics
		SandboxesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_sandboxes_active",
				Help: "Number of live sandboxes",
			},
		),
		SandboxesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orchestrator_sandboxes_total",
				Help: "Total number of sandboxes created",
			},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_uptime_seconds",
				Help: "Orchestrator uptime in seconds",
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

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCapability records one capability execution outcome. It
// satisfies the handler pipeline's Recorder interface; code is "ok" on
// success or the error classification on failure.
func (m *Metrics) RecordCapability(domain, operation, code string, duration time.Duration) {
	m.CapabilityCalls.WithLabelValues(domain, operation, code).Inc()
	m.CapabilityDuration.WithLabelValues(domain, operation).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.CapabilityCalls++
	m.mu.Unlock()

	switch errs.Code(code) {
	case errs.CodePermissionDenied:
		m.PermissionDenials.WithLabelValues(domain).Inc()
		m.mu.Lock()
		m.snapshot.Denials++
		m.mu.Unlock()
	case errs.CodeTimeout:
		m.Timeouts.WithLabelValues(domain).Inc()
		m.mu.Lock()
		m.snapshot.Timeouts++
		m.mu.Unlock()
	}
}

// SetPending sets the broker pending-request gauge
func (m *Metrics) SetPending(count int) {
	m.PendingRequests.Set(float64(count))
}

// SetSandboxes sets the live sandbox gauge
func (m *Metrics) SetSandboxes(count int) {
	m.SandboxesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSandboxes = int64(count)
	m.mu.Unlock()
}

// IncSandboxesTotal increments the created-sandbox counter
func (m *Metrics) IncSandboxesTotal() {
	m.SandboxesTotal.Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}
