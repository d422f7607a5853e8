package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/safefind/safefind/internal/blob"
	"github.com/safefind/safefind/internal/config"
	"github.com/safefind/safefind/internal/database"
	"github.com/safefind/safefind/internal/imaging"
	"github.com/safefind/safefind/internal/web/handlers"
	"github.com/safefind/safefind/internal/web/middleware"
)

// Deps are the collaborators the API is served from.
type Deps struct {
	Posts      database.PostWriter
	Blobs      blob.Store
	Normalizer *imaging.Normalizer
	Matcher    handlers.Comparer
	Scanner    handlers.Scanner
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Deps
	logger     *slog.Logger
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
		router: r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      otelhttp.NewHandler(r, "safefind"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute, // searches fetch every candidate image
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
