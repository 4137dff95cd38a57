package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"
)

var startTime = time.Now()

// HealthChecker is implemented by every backing service the API depends on
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ScanStatus reports whether the scanner has completed a pass
type ScanStatus interface {
	LastScanAt() (time.Time, bool)
}

type HealthHandler struct {
	db      HealthChecker
	redis   HealthChecker
	scanner ScanStatus
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	LastScan  *time.Time        `json:"last_scan,omitempty"`
}

// NewHealthHandler builds a handler; any dependency may be nil.
func NewHealthHandler(db, redis HealthChecker, scanner ScanStatus) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		scanner: scanner,
	}
}

func checkService(ctx context.Context, c HealthChecker) string {
	if c == nil {
		return "unhealthy: not configured"
	}
	if err := c.HealthCheck(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"database": checkService(r.Context(), h.db),
		"redis":    checkService(r.Context(), h.redis),
	}

	overallStatus := "healthy"
	for _, status := range services {
		if status != "healthy" {
			overallStatus = "unhealthy"
			break
		}
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  services,
		Version:   os.Getenv("APP_VERSION"),
		Uptime:    time.Since(startTime).String(),
	}
	if h.scanner != nil {
		if at, ok := h.scanner.LastScanAt(); ok {
			response.LastScan = &at
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Readiness check for Kubernetes-style deployments. Only the database gates readiness since
// candles are read from it.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{}
	ready := true
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err == nil {
			services["database"] = "ready"
		} else {
			services["database"] = "not ready"
			ready = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"ready":    ready,
		"services": services,
	}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Liveness check for container restarts
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
