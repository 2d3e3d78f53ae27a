// Package api provides the admin/health HTTP surface for the scheduler
// service.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/questboard/scheduler/internal/api/handler"
	"github.com/questboard/scheduler/internal/config"
	"github.com/questboard/scheduler/internal/db"
	"github.com/questboard/scheduler/internal/populate"
	"github.com/questboard/scheduler/internal/store"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(pool *db.Pool, st *store.Store, populator *populate.Populator, bus handler.BusHealth, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Timing)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(pool, st, populator, bus)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/bus", h.HealthCheckBus)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/schedule/next", h.GetNextDue)
		r.Get("/schedule/{gameID}", h.GetSchedule)
		r.Post("/schedule/{gameID}/rebuild", h.RebuildSchedule)
	})

	return r
}
