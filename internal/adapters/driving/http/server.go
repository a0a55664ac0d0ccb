package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/ports/driving"
)

// CheckFunc reports whether a dependency is reachable
type CheckFunc func(ctx context.Context) error

// ReadinessCheck is a named dependency probed by /ready
type ReadinessCheck struct {
	Name  string
	Check CheckFunc
}

// Metrics is the optional Prometheus surface
type Metrics interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	authService   driving.AuthService
	searchService driving.SearchService

	// Infrastructure
	checks  []ReadinessCheck
	metrics Metrics // can be nil
	limiter *RateLimiter
	logger  *slog.Logger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	RateLimit      RateLimitConfig
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:      "0.0.0.0",
		Port:      8080,
		Version:   "dev",
		RateLimit: DefaultRateLimitConfig(),
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	searchService driving.SearchService,
	checks []ReadinessCheck,
	metrics Metrics, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:        http.NewServeMux(),
		version:       cfg.Version,
		authService:   authService,
		searchService: searchService,
		checks:        checks,
		metrics:       metrics,
		limiter:       NewRateLimiter(cfg.RateLimit),
		logger:        logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.middleware(s.router, cfg.AllowedOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(s.limiter.Handler(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics.Handler())
	}

	// Search endpoints (authenticated, rate limited)
	s.router.Handle("POST /v1/search", protect(s.handleSearch))
	s.router.Handle("POST /v1/similar", protect(s.handleSimilar))
}

// middleware wraps the router in the global chain. Request IDs are assigned
// first so recovery and logging can report them.
func (s *Server) middleware(next http.Handler, origins []string) http.Handler {
	h := next
	if s.metrics != nil {
		h = s.metrics.Middleware(h)
	}
	if len(origins) > 0 {
		h = NewCORSMiddleware(origins).Handler(h)
	}
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	return RequestID(h)
}

// Handler returns the fully wrapped handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
