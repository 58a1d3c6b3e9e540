// Package server exposes the tracker over a JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/etnz/cryptofolio/common"
	"github.com/etnz/cryptofolio/tracker"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Server wraps the HTTP server and the tracker it serves.
type Server struct {
	tracker  *tracker.Tracker
	server   *http.Server
	logger   *common.Logger
	markdown goldmark.Markdown
}

// NewServer creates a new HTTP REST API server listening on addr.
func NewServer(t *tracker.Tracker, addr string, logger *common.Logger) *Server {
	s := &Server{
		tracker:  t,
		logger:   logger,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      applyMiddleware(mux, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// registerRoutes sets up all REST API routes on the mux, each named after
// the tracker operation it serves.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", operation("health", s.handleHealth))

	mux.HandleFunc("/api/portfolio", operation("portfolio", s.handlePortfolio))
	mux.HandleFunc("/api/portfolio/update", operation("update", s.handlePortfolioUpdate))
	mux.HandleFunc("/api/portfolio/analysis", operation("analysis", s.handlePortfolioAnalysis))
	mux.HandleFunc("/api/portfolio/history", operation("history", s.handlePortfolioHistory))
	mux.HandleFunc("/api/portfolio/history/chart", operation("history_chart", s.handlePortfolioHistoryChart))
}
