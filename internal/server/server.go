// Package server provides the HTTP view API for the sync engine.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/config"
	"github.com/amitsaini144/solagram/internal/engine"
	"github.com/amitsaini144/solagram/internal/health"
	"github.com/amitsaini144/solagram/internal/metrics"
)

// Server represents the view API HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *Handlers
	checker      *health.Checker
	errorHandler *ErrorHandler
	met          *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new view API server.
func NewServer(cfg *config.Config, eng *engine.Engine, checker *health.Checker, met *metrics.Metrics, logger *zap.Logger) *Server {
	router := mux.NewRouter()
	errorHandler := NewErrorHandler(logger)
	handlers := NewHandlers(eng, errorHandler, logger, cfg.Server.RequestTimeout)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		checker:      checker,
		errorHandler: errorHandler,
		met:          met,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		Recovery(s.logger),
		RequestID,
		Logging(s.logger),
		metrics.MetricsMiddleware(s.met),
		CORS(s.cfg.Server.CORSOrigins),
	}

	if s.cfg.Server.RateLimiter.Enabled {
		rateLimiter := NewRateLimiter(
			s.cfg.Server.RateLimiter.RequestsPerSecond,
			s.cfg.Server.RateLimiter.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	chain := Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	// Health check endpoints
	s.router.HandleFunc("/health", s.checker.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.checker.ReadinessHandler).Methods(http.MethodGet)

	// API v1 routes
	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/feed", s.handlers.Feed).Methods(http.MethodGet)
	v1.HandleFunc("/session", s.handlers.Session).Methods(http.MethodGet)

	v1.HandleFunc("/profile", s.handlers.UpsertProfile).Methods(http.MethodPut)
	v1.HandleFunc("/profiles/{identity}", s.handlers.Profile).Methods(http.MethodGet)
	v1.HandleFunc("/profiles/{identity}/posts", s.handlers.PostsByCreator).Methods(http.MethodGet)

	v1.HandleFunc("/posts", s.handlers.CreatePost).Methods(http.MethodPost)
	v1.HandleFunc("/posts/{address}", s.handlers.DeletePost).Methods(http.MethodDelete)
	v1.HandleFunc("/posts/{address}/comments", s.handlers.Comments).Methods(http.MethodGet)
	v1.HandleFunc("/posts/{address}/comments", s.handlers.CreateComment).Methods(http.MethodPost)
	v1.HandleFunc("/posts/{address}/like", s.handlers.LikePost).Methods(http.MethodPost)

	v1.HandleFunc("/follows/{identity}", s.handlers.FollowStatus).Methods(http.MethodGet)
	v1.HandleFunc("/follows/{identity}", s.handlers.Follow).Methods(http.MethodPost)
	v1.HandleFunc("/follows/{identity}", s.handlers.Unfollow).Methods(http.MethodDelete)

	// Not found handler
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, ErrorCodeInvalidRequest, "endpoint not found", requestID)
	})

	// Method not allowed handler
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed", requestID)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting view API server",
		zap.String("addr", s.httpServer.Addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start view API server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down view API server")
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
