package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusNoToken      = "not authorized"
)

// HealthChecker serves liveness and readiness probes next to /metrics.
// Liveness only proves the process is up; readiness flips once the tool
// registry is wired and flips back when the ServerContext shuts down.
type HealthChecker struct {
	ready     atomic.Bool
	sc        *ServerContext
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker. The server is not ready until
// SetReady(true) is called.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	return &HealthChecker{
		sc:        sc,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) shuttingDown() bool {
	return h.sc != nil && h.sc.IsShutdown()
}

// HealthResponse is the JSON body of every health endpoint. Uptime and
// Checks are filled in only where the endpoint reports them.
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeHealth(w http.ResponseWriter, code int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// LivenessHandler answers /healthz: the process is running.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers /readyz. Not ready while starting up and while
// shutting down; a missing Gmail token is reported but does not gate
// readiness, since the OAuth tools can authorize in-session.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks := map[string]string{
			"ready":    healthStatusOK,
			"shutdown": healthStatusOK,
		}
		code := http.StatusOK
		status := healthStatusOK

		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
			status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		}
		if h.shuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
			status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		}
		if h.sc != nil {
			checks["gmail"] = healthStatusOK
			if h.sc.GmailClient() == nil {
				checks["gmail"] = healthStatusNoToken
			}
		}

		writeHealth(w, code, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler answers /healthz/detailed with uptime included.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		code := http.StatusOK

		switch {
		case h.shuttingDown():
			resp.Status = healthStatusShuttingDown
			code = http.StatusServiceUnavailable
		case !h.ready.Load():
			resp.Status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		}

		writeHealth(w, code, resp)
	})
}

// RegisterHealthEndpoints mounts the health endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}
