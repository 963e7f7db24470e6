// Package server exposes import sessions over a small JSON API so that a browser front end
// can drive the preview: upload, edit, remove, confirm and cancel.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"adonel/internal/commit"
	"adonel/internal/resolver"
)

// Config holds server configuration
type Config struct {
	Port        int
	Log         zerolog.Logger
	Registry    *Registry
	Committer   *commit.Controller
	Catalogue   *resolver.Catalogue
	CORSOrigins []string

	// SessionTTL bounds how long a session may sit without requests (default 12h).
	SessionTTL time.Duration
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	registry   *Registry
	committer  *commit.Controller
	catalogue  *resolver.Catalogue
	port       int
	sessionTTL time.Duration
	stop       chan struct{}
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		registry:   cfg.Registry,
		committer:  cfg.Committer,
		catalogue:  cfg.Catalogue,
		port:       cfg.Port,
		sessionTTL: cfg.SessionTTL,
		stop:       make(chan struct{}),
	}
	if s.catalogue == nil {
		s.catalogue = resolver.DefaultCatalogue()
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 12 * time.Hour
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.setupMiddleware(origins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "ngrok-skip-browser-warning"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/unidades", s.handleUnits)

		r.Route("/{kind}", func(r chi.Router) {
			r.Use(s.kindMiddleware)

			r.Post("/sessions", s.handleCreateSession)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Use(s.sessionMiddleware)

				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleCloseSession)
				r.Get("/preview.xlsx", s.handleExportXLSX)
				r.Post("/files", s.handleParseFiles)
				r.Post("/records", s.handleAddRecord)
				r.Delete("/records", s.handleClearRecords)
				r.Patch("/records/{index}", s.handleUpdateRecord)
				r.Delete("/records/{index}", s.handleRemoveRecord)
				r.Post("/commit", s.handleCommit)
			})
		})
	})
}

// Start starts the HTTP server and the session janitor
func (s *Server) Start() error {
	go s.sweepSessions()

	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	close(s.stop)
	return s.server.Shutdown(ctx)
}

func (s *Server) sweepSessions() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			if n := s.registry.Sweep(now, s.sessionTTL); n > 0 {
				s.log.Info().Int("closed", n).Msg("Closed expired import sessions")
			}
		}
	}
}

// loggingMiddleware logs HTTP requests
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
