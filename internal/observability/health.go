package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const (
	// ServiceName identifies this service in logs, health and telemetry.
	ServiceName = "coach-gateway"

	// Version is reported by the health endpoints.
	Version = "1.0.0"
)

// readinessTimeout bounds a full round of dependency checks.
const readinessTimeout = 5 * time.Second

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// HealthCheckFunc reports whether a dependency is usable.
type HealthCheckFunc func(ctx context.Context) (bool, error)

// HealthCheck is a named dependency check.
type HealthCheck struct {
	Name  string
	Check HealthCheckFunc
}

// RunChecks runs every check and reports whether all of them passed.
func RunChecks(ctx context.Context, checks []HealthCheck) (bool, map[string]DependencyStatus) {
	dependencies := make(map[string]DependencyStatus, len(checks))
	allHealthy := true

	for _, hc := range checks {
		if hc.Check == nil {
			continue
		}

		start := time.Now()
		healthy, err := hc.Check(ctx)
		latency := time.Since(start).Milliseconds()

		dep := DependencyStatus{Status: "healthy", LatencyMs: latency}
		if err != nil || !healthy {
			dep.Status = "unhealthy"
			allHealthy = false
			if err != nil {
				dep.Message = err.Error()
			}
		}
		dependencies[hc.Name] = dep
	}

	return allHealthy, dependencies
}

// HealthCheckHandler handles liveness requests
func HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, HealthStatus{
			Status:    "healthy",
			Service:   ServiceName,
			Version:   Version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadinessHandler handles readiness requests. Checks are passed in as
// functions to avoid import cycles.
func ReadinessHandler(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		allHealthy, dependencies := RunChecks(ctx, checks)

		status := HealthStatus{
			Status:       "ready",
			Service:      ServiceName,
			Version:      Version,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Dependencies: dependencies,
		}

		code := http.StatusOK
		if !allHealthy {
			status.Status = "not_ready"
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, status)
	}
}

func writeStatus(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logger := GetLogger()
		logger.Warn().Err(err).Msg("Failed to write health response")
	}
}
