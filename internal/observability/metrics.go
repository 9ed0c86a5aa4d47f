package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsight_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Agent invocation metrics
	agentInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_agent_invocations_total",
			Help: "Total number of agent invocations",
		},
		[]string{"agent", "provider", "status"},
	)

	agentInvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsight_agent_invocation_duration_seconds",
			Help:    "Agent invocation duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 180, 300},
		},
		[]string{"agent", "provider"},
	)

	agentTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_agent_tokens_total",
			Help: "Total tokens consumed by agent invocations",
		},
		[]string{"agent", "provider"},
	)

	// Gate metrics
	gateInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "finsight_gate_in_flight",
			Help: "Number of model calls currently admitted by the concurrency gate",
		},
	)

	gateWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finsight_gate_wait_duration_seconds",
			Help:    "Time spent waiting for a concurrency gate slot",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Session metrics
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "finsight_sessions_active",
			Help: "Number of live sessions in the store",
		},
	)

	sessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finsight_sessions_swept_total",
			Help: "Total sessions reclaimed by the idle sweep",
		},
	)

	// Cache metrics
	cacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_cache_ops_total",
			Help: "Cache operations by backend and outcome",
		},
		[]string{"backend", "op", "outcome"},
	)

	initOnce sync.Once
)

// InitMetrics registers all Prometheus metrics.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			agentInvocationsTotal,
			agentInvocationDuration,
			agentTokensTotal,
			gateInFlight,
			gateWaitDuration,
			sessionsActive,
			sessionsSwept,
			cacheOpsTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAgentInvocation records one agent invocation outcome.
func RecordAgentInvocation(agent, provider, status string, duration time.Duration) {
	agentInvocationsTotal.WithLabelValues(agent, provider, status).Inc()
	agentInvocationDuration.WithLabelValues(agent, provider).Observe(duration.Seconds())
}

// RecordAgentTokens adds to the per-agent token counter.
func RecordAgentTokens(agent, provider string, tokens int) {
	if tokens > 0 {
		agentTokensTotal.WithLabelValues(agent, provider).Add(float64(tokens))
	}
}

// SetGateInFlight sets the gate in-flight gauge.
func SetGateInFlight(n int) {
	gateInFlight.Set(float64(n))
}

// RecordGateWait records time spent blocked on the gate.
func RecordGateWait(d time.Duration) {
	gateWaitDuration.Observe(d.Seconds())
}

// SetSessionsActive sets the live-session gauge.
func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// RecordSessionsSwept adds to the swept-session counter.
func RecordSessionsSwept(n int) {
	if n > 0 {
		sessionsSwept.Add(float64(n))
	}
}

// RecordCacheOp records a cache operation outcome.
func RecordCacheOp(backend, op, outcome string) {
	cacheOpsTotal.WithLabelValues(backend, op, outcome).Inc()
}
