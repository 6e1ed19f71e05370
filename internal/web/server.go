// Package web exposes the importer over HTTP: health, the import plan,
// triggering runs and reading their results.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/emissions-import/internal/config"
	"github.com/JonMunkholm/emissions-import/internal/core"
	mw "github.com/JonMunkholm/emissions-import/internal/web/middleware"
)

// HealthChecker reports database reachability.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Server is the HTTP server for the importer.
type Server struct {
	service *core.Service
	conn    core.Connector
	health  HealthChecker
	cfg     config.ServerConfig
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. conn supplies sessions for triggered runs.
func NewServer(service *core.Service, conn core.Connector, health HealthChecker, cfg config.ServerConfig) *Server {
	s := &Server{
		service: service,
		conn:    conn,
		health:  health,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/entities", s.handleListEntities)

	s.router.Route("/imports", func(r chi.Router) {
		r.Get("/last", s.handleLastResult)
		r.Get("/progress", s.handleProgress)
		r.Get("/check", s.handleCheck)

		r.With(mw.APIKeyAuth(s.cfg.APIKeys)).Post("/", s.handleStartImport)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
