// Package handler provides HTTP handlers for the admin/health surface.
// The scheduler has no user-facing API; these endpoints exist for operators
// and liveness probes.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/questboard/scheduler/internal/api/respond"
	"github.com/questboard/scheduler/internal/db"
	"github.com/questboard/scheduler/internal/populate"
	"github.com/questboard/scheduler/internal/store"
)

// BusHealth is the slice of the publisher the health endpoint needs.
type BusHealth interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool      *db.Pool
	store     *store.Store
	populator *populate.Populator
	bus       BusHealth
}

// New creates a Handler with shared dependencies.
func New(pool *db.Pool, st *store.Store, populator *populate.Populator, bus BusHealth) *Handler {
	return &Handler{pool: pool, store: st, populator: populator, bus: bus}
}

// Root serves service info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Questboard Scheduler",
		"version": "1.0.0",
		"status":  "running",
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckBus verifies event bus connectivity.
func (h *Handler) HealthCheckBus(w http.ResponseWriter, r *http.Request) {
	if err := h.bus.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"bus":       "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"bus":       "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
