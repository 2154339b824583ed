package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/engine"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engines *engine.Manager, version string) *Server {
	handler := NewHandler(repo, cache, bus, engines, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no company required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (company required)
	router.Route("/", func(r chi.Router) {
		r.Use(CompanyMiddleware)
		r.Use(RateLimitMiddleware(cache, cfg.RateLimitPerMinute))

		// Transaction ingestion and retrieval
		r.Post("/transactions", handler.IngestTransaction)
		r.Get("/transactions", handler.ListTransactions)
		r.Get("/transactions/{id}", handler.GetTransaction)

		// Anomaly review
		r.Get("/anomalies", handler.ListAnomalies)
		r.Get("/anomalies/{id}", handler.GetAnomaly)
		r.Patch("/anomalies/{id}", handler.ReviewAnomaly)

		// Fleet registry
		r.Get("/vehicles", handler.ListVehicles)
		r.Post("/vehicles", handler.SaveVehicle)
		r.Get("/vehicles/{id}", handler.GetVehicle)
		r.Delete("/vehicles/{id}", handler.DeleteVehicle)

		r.Get("/projects", handler.ListProjects)
		r.Post("/projects", handler.SaveProject)
		r.Get("/projects/{id}", handler.GetProject)
		r.Delete("/projects/{id}", handler.DeleteProject)

		r.Get("/workers", handler.ListWorkers)
		r.Post("/workers", handler.SaveWorker)
		r.Get("/workers/{id}", handler.GetWorker)
		r.Delete("/workers/{id}", handler.DeleteWorker)

		// Provider sync
		r.Post("/providers/{name}/sync", handler.SyncProvider)

		// Custom rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)

		// Aggregate statistics
		r.Get("/stats", handler.GetStats)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
