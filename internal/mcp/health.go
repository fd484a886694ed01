package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	VectorStore string `json:"vector_store"`
	Sessions    int    `json:"sessions"`
	Timestamp   string `json:"timestamp"`
}

// HealthChecker interface defines the health check dependency.
// The Qdrant storage layer implements this via its Health() method.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// A nil store means sessions are held in memory and the store is always reachable.
func NewHealthHandler(store HealthChecker, sessions func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if sessions != nil {
			response.Sessions = sessions()
		}

		w.Header().Set("Content-Type", "application/json")

		switch {
		case store == nil:
			response.Status = "healthy"
			response.VectorStore = "memory"
		case store.Health(ctx) != nil:
			response.Status = "unhealthy"
			response.VectorStore = "disconnected"
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(response)
			return
		default:
			response.Status = "healthy"
			response.VectorStore = "connected"
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}
