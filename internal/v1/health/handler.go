package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CapacityStats is a point-in-time snapshot of server occupancy, reported by
// the connection hub so readiness can reflect real load instead of just
// process liveness.
type CapacityStats struct {
	Connections    int
	MaxConnections int
	Rooms          int
	MaxRooms       int
}

// CapacityChecker is implemented by the connection hub.
type CapacityChecker interface {
	Stats() CapacityStats
}

// UpstreamChecker reports the circuit breaker state of an outbound
// dependency used by the sibling chat/vision/news API (see chatapi).
// Implementations return one of "healthy", "degraded", "unavailable".
type UpstreamChecker interface {
	UpstreamStatus() map[string]string
}

// Handler manages health check endpoints for the room coordination server.
type Handler struct {
	capacity CapacityChecker
	upstream UpstreamChecker
}

// NewHandler creates a new health check handler. capacity and upstream may
// each be nil, in which case the corresponding checks are skipped.
func NewHandler(capacity CapacityChecker, upstream UpstreamChecker) *Handler {
	return &Handler{capacity: capacity, upstream: upstream}
}

// LivenessResponse represents the liveness probe response.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint.
// GET /health/live
// Returns 200 if the process is alive; it performs no dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint.
// GET /health/ready
// Returns 200 unless the hub is at capacity or an upstream reports
// "unavailable"; either case returns 503.
func (h *Handler) Readiness(c *gin.Context) {
	_, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.capacity != nil {
		capacityStatus := h.checkCapacity()
		checks["capacity"] = capacityStatus
		if capacityStatus != "healthy" {
			allHealthy = false
		}
	}

	if h.upstream != nil {
		for name, status := range h.upstream.UpstreamStatus() {
			checks["upstream_"+name] = status
			if status == "unavailable" {
				allHealthy = false
			}
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkCapacity reports whether the hub still has headroom for new
// connections or rooms. A configured limit of 0 means unbounded.
func (h *Handler) checkCapacity() string {
	stats := h.capacity.Stats()

	if stats.MaxConnections > 0 && stats.Connections >= stats.MaxConnections {
		return "at_capacity"
	}
	if stats.MaxRooms > 0 && stats.Rooms >= stats.MaxRooms {
		return "at_capacity"
	}

	return "healthy"
}

// HealthCheckResponse is a generic health check response used by ad-hoc
// status endpoints outside the liveness/readiness probes.
type HealthCheckResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for better formatting.
func (r ReadinessResponse) MarshalJSON() ([]byte, error) {
	type Alias ReadinessResponse
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(&r),
	})
}
