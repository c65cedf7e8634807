// Package server exposes graph builds over HTTP.
//
// Routes:
//
//	POST /v1/graphs          build a graph; body is an input document (JSON or YAML)
//	POST /v1/graphs/render   build and render; ?format=svg|dot&rankdir=TB|LR&versions=false
//	GET  /healthz            liveness
//	GET  /version            build information
//
// Both build routes accept ?allowMissingPeers=true|false to override the
// server's missing-peer policy for one request. Unknown paths get a JSON
// NOT_FOUND error. Every response carries an X-Request-Id header.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/peergraph/pkg/pipeline"
)

// DefaultMaxBodySize bounds request bodies when Options.MaxBodySize is zero.
const DefaultMaxBodySize = 10 << 20

// Options configures a Server.
type Options struct {
	MaxBodySize int64

	// AllowMissingPeers is the missing-peer policy for requests without an
	// allowMissingPeers query parameter.
	AllowMissingPeers bool
}

// Server serves the HTTP API on top of a pipeline runner.
type Server struct {
	runner       *pipeline.Runner
	logger       *log.Logger
	maxBody      int64
	allowMissing bool
	router       chi.Router
}

// New creates a server. The runner is shared by all requests.
func New(runner *pipeline.Runner, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	s := &Server{
		runner:       runner,
		logger:       logger,
		maxBody:      opts.MaxBodySize,
		allowMissing: opts.AllowMissingPeers,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Post("/v1/graphs", s.handleBuild)
	r.Post("/v1/graphs/render", s.handleRender)
	r.NotFound(s.handleNotFound)
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
