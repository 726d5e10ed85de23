package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// MirrorHealthResponse is the body of the mirror health endpoint.
type MirrorHealthResponse struct {
	Status    string `json:"status"`
	Qdrant    string `json:"qdrant"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker is implemented by the Qdrant mirror.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// mirrorStatus is "disabled" without a mirror, else "connected" or "disconnected".
func mirrorStatus(ctx context.Context, mirror HealthChecker) string {
	if mirror == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := mirror.Health(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}

// NewMirrorHealthHandler reports Qdrant mirror connectivity: 200 when
// connected, 503 otherwise.
func NewMirrorHealthHandler(mirror HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := MirrorHealthResponse{
			Qdrant:    mirrorStatus(r.Context(), mirror),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		status := http.StatusOK
		response.Status = "healthy"
		if response.Qdrant == "disconnected" {
			status = http.StatusServiceUnavailable
			response.Status = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}
}
