package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/config"
)

// HealthCheck probes one dependency (database, cache, broker).
type HealthCheck func(ctx context.Context) error

// StatsFunc supplies the payload for the /stats endpoint.
type StatsFunc func(ctx context.Context) (map[string]interface{}, error)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type ComponentHealth struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
	Duration  string       `json:"duration"`
}

type OverallHealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Service    string                     `json:"service"`
	Version    string                     `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
}

type SimpleHealthResponse struct {
	Status    HealthStatus `json:"status"`
	Service   string       `json:"service"`
	Timestamp time.Time    `json:"timestamp"`
	Version   string       `json:"version"`
}

// HealthServer exposes HTTP health and stats endpoints for the service.
// Dependency probes are injected so the server stays decoupled from the
// storage and messaging layers.
type HealthServer struct {
	logger    *slog.Logger
	server    *http.Server
	checks    map[string]HealthCheck
	stats     StatsFunc
	service   string
	version   string
	startTime time.Time
}

// NewHealthServer creates a health server on the configured port.
func NewHealthServer(serverCfg config.ServerConfig, obsCfg config.ObservabilityConfig, checks map[string]HealthCheck, stats StatsFunc, logger *slog.Logger) *HealthServer {
	h := &HealthServer{
		logger:    logger,
		checks:    checks,
		stats:     stats,
		service:   obsCfg.ServiceName,
		version:   obsCfg.ServiceVersion,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealthCheck)
	mux.HandleFunc("/health/ready", h.handleReadinessCheck)
	mux.HandleFunc("/health/live", h.handleLivenessCheck)
	mux.HandleFunc("/stats", h.handleStats)

	h.server = &http.Server{
		Addr:         ":" + serverCfg.HealthPort,
		Handler:      mux,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Start serves health endpoints until Stop is called.
func (h *HealthServer) Start() {
	h.logger.Info("Health server listening", "addr", h.server.Addr)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("Health server failed", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (h *HealthServer) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	components := make(map[string]ComponentHealth, len(h.checks))
	overall := HealthStatusHealthy
	for name, check := range h.checks {
		component := h.runCheck(ctx, check)
		components[name] = component
		if component.Status == HealthStatusUnhealthy {
			overall = HealthStatusUnhealthy
		}
	}

	statusCode := http.StatusOK
	if overall == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, OverallHealthResponse{
		Status:     overall,
		Service:    h.service,
		Version:    h.version,
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(h.startTime).String(),
		Components: components,
	})
}

func (h *HealthServer) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	for name, check := range h.checks {
		if component := h.runCheck(ctx, check); component.Status == HealthStatusUnhealthy {
			h.logger.Warn("Readiness check failed", "component", name, "message", component.Message)
			h.writeJSON(w, http.StatusServiceUnavailable, SimpleHealthResponse{
				Status:    HealthStatusUnhealthy,
				Service:   h.service,
				Timestamp: time.Now().UTC(),
				Version:   h.version,
			})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, SimpleHealthResponse{
		Status:    HealthStatusHealthy,
		Service:   h.service,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

func (h *HealthServer) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, SimpleHealthResponse{
		Status:    HealthStatusHealthy,
		Service:   h.service,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

func (h *HealthServer) handleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service":   h.service,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startTime).String(),
	}

	if h.stats != nil {
		stats, err := h.stats(r.Context())
		if err != nil {
			h.logger.Warn("Failed to collect stats", "error", err)
		} else {
			for k, v := range stats {
				response[k] = v
			}
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *HealthServer) runCheck(ctx context.Context, check HealthCheck) ComponentHealth {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := check(checkCtx); err != nil {
		return ComponentHealth{
			Status:    HealthStatusUnhealthy,
			Message:   fmt.Sprintf("check failed: %v", err),
			CheckedAt: time.Now().UTC(),
			Duration:  time.Since(start).String(),
		}
	}
	return ComponentHealth{
		Status:    HealthStatusHealthy,
		CheckedAt: time.Now().UTC(),
		Duration:  time.Since(start).String(),
	}
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
