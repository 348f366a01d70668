// Package server provides the HTTP server and routing for Folio.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/folioapp/folio/internal/auth"
	"github.com/folioapp/folio/internal/database"
	analyticshandlers "github.com/folioapp/folio/internal/modules/analytics/handlers"
	grouphandlers "github.com/folioapp/folio/internal/modules/groups/handlers"
	portfoliohandlers "github.com/folioapp/folio/internal/modules/portfolios/handlers"
	stockhandlers "github.com/folioapp/folio/internal/modules/stocks/handlers"
)

// Config holds server configuration
type Config struct {
	Log              zerolog.Logger
	Port             int
	DevMode          bool
	PortfolioDB      *database.DB
	CacheDB          *database.DB
	AuthService      *auth.Service
	AuthHandler      *auth.Handler
	GroupHandler     *grouphandlers.Handler
	PortfolioHandler *portfoliohandlers.Handler
	AnalyticsHandler *analyticshandlers.Handler
	StockHandler     *stockhandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	portfolioDB *database.DB
	cacheDB     *database.DB
	cfg         Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		portfolioDB: cfg.PortfolioDB,
		cacheDB:     cfg.CacheDB,
		cfg:         cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Public routes
		s.cfg.AuthHandler.RegisterRoutes(r)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(s.cfg.AuthService.Middleware)

			s.cfg.AuthHandler.RegisterAccountRoutes(r)
			s.cfg.GroupHandler.RegisterRoutes(r)
			s.cfg.PortfolioHandler.RegisterRoutes(r, s.cfg.AnalyticsHandler)
			s.cfg.AnalyticsHandler.RegisterRoutes(r)
			s.cfg.StockHandler.RegisterRoutes(r)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if err := s.portfolioDB.HealthCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Portfolio database unhealthy")
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	if err := s.cacheDB.HealthCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Cache database unhealthy")
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": "1.0.0",
		"service": "folio",
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
