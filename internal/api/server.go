// Package api exposes the suggestion service over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/FranksOps/keyvo/internal/suggest"
)

// Suggester is the behaviour the API needs from the suggestion service.
type Suggester interface {
	Suggest(ctx context.Context, q suggest.Query) ([]string, error)
}

// Options configures the HTTP surface.
type Options struct {
	Addr              string
	AllowedOrigins    []string
	ReadHeaderTimeout time.Duration
}

type Server struct {
	server    *http.Server
	logger    *slog.Logger
	suggester Suggester
}

func NewServer(opts Options, suggester Suggester, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 10 * time.Second
	}

	s := &Server{
		logger:    logger,
		suggester: suggester,
		server: &http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
		},
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/keywords", s.handleKeywords)

	s.server.Handler = r
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// ListenAndServe blocks until the server stops. Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info(fmt.Sprintf("Keyvo API ready at %s", s.Addr()))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
