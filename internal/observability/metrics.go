package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	stateTransitions *prometheus.CounterVec
	conversations    prometheus.Counter
	activeSessions   prometheus.Gauge

	reasoningTotal    *prometheus.CounterVec
	reasoningDuration *prometheus.HistogramVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec
	dispatchSize          prometheus.Histogram

	memoryWriteDuration prometheus.Histogram
	memoryWriteErrors   prometheus.Counter
	memoryCompactions   *prometheus.CounterVec
	memoryBufferEntries prometheus.Gauge

	gatewayConnections prometheus.Gauge
	gatewayFrames      *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			stateTransitions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eva_state_transitions_total",
					Help: "Session state transitions by source and target state.",
				},
				[]string{"from", "to"},
			),
			conversations: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "eva_conversations_total",
					Help: "Completed sensing cycles.",
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "eva_active_sessions",
					Help: "Sessions currently running.",
				},
			),
			reasoningTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eva_reasoning_calls_total",
					Help: "Reasoning model calls by provider, purpose and status.",
				},
				[]string{"provider", "purpose", "status"},
			),
			reasoningDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "eva_reasoning_duration_seconds",
					Help:    "Reasoning model call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eva_tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "eva_tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eva_tool_errors_total",
					Help: "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
			dispatchSize: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "eva_dispatch_size",
					Help:    "Number of action requests per dispatch.",
					Buckets: []float64{1, 2, 3, 5, 8},
				},
			),
			memoryWriteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "eva_memory_write_duration_seconds",
					Help:    "Durable memory write duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryWriteErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "eva_memory_write_errors_total",
					Help: "Durable memory writes that failed.",
				},
			),
			memoryCompactions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eva_memory_compactions_total",
					Help: "Buffer compactions by outcome (summarized, fallback).",
				},
				[]string{"outcome"},
			),
			memoryBufferEntries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "eva_memory_buffer_entries",
					Help: "Entries currently held in the rolling buffer.",
				},
			),
			gatewayConnections: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "eva_gateway_connections",
					Help: "Open device websocket connections.",
				},
			),
			gatewayFrames: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eva_gateway_frames_total",
					Help: "Websocket frames by direction and type.",
				},
				[]string{"direction", "type"},
			),
		}

		prometheus.MustRegister(
			m.stateTransitions,
			m.conversations,
			m.activeSessions,
			m.reasoningTotal,
			m.reasoningDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.dispatchSize,
			m.memoryWriteDuration,
			m.memoryWriteErrors,
			m.memoryCompactions,
			m.memoryBufferEntries,
			m.gatewayConnections,
			m.gatewayFrames,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordTransition(from, to string) {
	getMetrics().stateTransitions.WithLabelValues(from, to).Inc()
}

func RecordConversation() {
	getMetrics().conversations.Inc()
}

func SessionStarted() {
	getMetrics().activeSessions.Inc()
}

func SessionEnded() {
	getMetrics().activeSessions.Dec()
}

func RecordReasoning(provider, purpose string, duration time.Duration, success bool) {
	m := getMetrics()
	m.reasoningTotal.WithLabelValues(provider, purpose, status(success)).Inc()
	m.reasoningDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, status(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

func RecordDispatch(size int) {
	getMetrics().dispatchSize.Observe(float64(size))
}

func RecordMemoryWrite(duration time.Duration, success bool) {
	m := getMetrics()
	m.memoryWriteDuration.Observe(duration.Seconds())
	if !success {
		m.memoryWriteErrors.Inc()
	}
}

func RecordCompaction(outcome string) {
	getMetrics().memoryCompactions.WithLabelValues(outcome).Inc()
}

func SetMemoryBuffer(entries int) {
	getMetrics().memoryBufferEntries.Set(float64(entries))
}

func SetGatewayConnections(n int) {
	getMetrics().gatewayConnections.Set(float64(n))
}

func RecordGatewayFrame(direction, frameType string) {
	getMetrics().gatewayFrames.WithLabelValues(direction, frameType).Inc()
}
