package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection and session metrics
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coach_gateway_active_connections",
		Help: "Number of open client connections",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coach_gateway_active_sessions",
		Help: "Number of coaching sessions not yet ended",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_sessions_total",
		Help: "Total number of coaching sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coach_gateway_session_duration_seconds",
		Help:    "Duration of coaching sessions in seconds",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
	})

	// Analysis metrics
	fragmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_fragments_total",
		Help: "Total transcript fragments ingested",
	})

	fragmentsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_fragments_dropped_total",
		Help: "Transcript fragments discarded because no session was active",
	})

	checkpointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_checkpoints_total",
		Help: "Total checkpoints evaluated",
	}, []string{"category", "tier"})

	fillersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_fillers_total",
		Help: "Total filler words and phrases detected",
	})

	feedbackDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_feedback_dropped_total",
		Help: "Feedback messages dropped from a full outbox",
	})

	// Coach metrics
	coachRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_coach_requests_total",
		Help: "Total number of deep coaching requests",
	}, []string{"status"})

	coachLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coach_gateway_coach_latency_seconds",
		Help:    "Deep coaching latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	// Store metrics
	storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_store_operations_total",
		Help: "Session store operations",
	}, []string{"op", "status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coach_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_audio_bytes_total",
		Help: "Total audio bytes forwarded to transcription",
	})
)

// Metrics tracks metrics for a single coaching session
type Metrics struct {
	sessionID  string
	startTime  time.Time
	coachStart time.Time
	ended      bool
	mu         sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session. Only the first call counts.
func (m *Metrics) RecordSessionEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true

	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordFragment records an ingested transcript fragment
func (m *Metrics) RecordFragment() {
	fragmentsTotal.Inc()
}

// RecordCheckpoint records a checkpoint evaluation
func (m *Metrics) RecordCheckpoint(category, tier string, fillers int) {
	checkpointsTotal.WithLabelValues(category, tier).Inc()
	fillersTotal.Add(float64(fillers))
}

// RecordCoachStart records the start of a deep coaching request
func (m *Metrics) RecordCoachStart() {
	m.mu.Lock()
	m.coachStart = time.Now()
	m.mu.Unlock()
}

// RecordCoachEnd records the end of a deep coaching request
func (m *Metrics) RecordCoachEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.coachStart.IsZero() {
		coachLatency.Observe(time.Since(m.coachStart).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	coachRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordAudioBytes records audio bytes forwarded to transcription
func (m *Metrics) RecordAudioBytes(bytes int64) {
	audioBytesProcessed.Add(float64(bytes))
}

// ConnectionOpened records a new client connection
func ConnectionOpened() {
	activeConnections.Inc()
}

// ConnectionClosed records a closed client connection
func ConnectionClosed() {
	activeConnections.Dec()
}

// RecordFragmentDropped records a fragment that arrived with no active session
func RecordFragmentDropped() {
	fragmentsDropped.Inc()
}

// RecordFeedbackDropped records a feedback message evicted from a full outbox
func RecordFeedbackDropped() {
	feedbackDropped.Inc()
}

// RecordStoreOperation records a store operation outcome
func RecordStoreOperation(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	storeOperations.WithLabelValues(op, status).Inc()
}

// RecordError records an error outside of a session
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
