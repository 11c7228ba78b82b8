// Package api exposes the planning engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, limits domain.RateLimitConfig, opts Options) *Server {
	if opts.RequestTimeout <= 0 && cfg.RequestTimeout > 0 {
		opts.RequestTimeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	handler := NewHandler(opts)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware(cfg.CORSOrigin)) // CORS for browser clients
	router.Use(RecoverMiddleware)              // Recover from panics
	router.Use(middleware.RealIP)              // Extract real IP
	router.Use(ClientMiddleware)               // Client identity
	router.Use(TracingMiddleware)              // OpenTelemetry tracing
	router.Use(LoggingMiddleware)              // Request logging
	router.Use(middleware.Compress(5))         // Gzip compression

	// Health endpoints (never rate limited)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Route("/api", func(r chi.Router) {
		if limits.Enabled {
			r.Use(newRateLimiter(limits).Middleware)
		}

		// Planning
		r.Post("/planning/recommend", handler.Recommend)
		r.Post("/planning/assess", handler.Assess)
		r.Get("/planning/plans/{id}", handler.GetPlan)

		// Reference data
		r.Get("/risk-tiers", handler.ListRiskTiers)

		// Rationale clause management
		r.Get("/rationale/clauses", handler.ListClauses)
		r.Get("/rationale/clauses/{id}", handler.GetClause)
		r.Post("/rationale/clauses", handler.SaveClause)
		r.Delete("/rationale/clauses/{id}", handler.DeleteClause)
		r.Post("/rationale/clauses/reload", handler.ReloadClauses)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           router,
			ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
