// Package api exposes the engine over HTTP
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mrcode/nightscout-engine/internal/engine"
	"github.com/mrcode/nightscout-engine/internal/stream"
)

// Engine is the part of engine.Service the handlers call
type Engine interface {
	Status(ctx context.Context) (*engine.Status, error)
	Report(ctx context.Context, days int) (*engine.Report, error)
}

// Server holds handler dependencies
type Server struct {
	engine Engine
	stream http.HandlerFunc
	log    *slog.Logger
}

// Option customises a Server
type Option func(*Server)

// WithStream serves live status updates at /api/v1/stream
func WithStream(hub *stream.Hub) Option {
	return func(s *Server) {
		s.stream = hub.ServeWS
	}
}

// NewServer creates the handler set
func NewServer(eng Engine, log *slog.Logger, opts ...Option) *Server {
	s := &Server{engine: eng, log: log.With("component", "api")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRouter registers every route
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	v1.HandleFunc("/status/badge.{format:png|ico}", s.badgeHandler).Methods(http.MethodGet)
	v1.HandleFunc("/report", s.reportHandler).Methods(http.MethodGet)
	if s.stream != nil {
		v1.HandleFunc("/stream", s.stream).Methods(http.MethodGet)
	}

	return r
}

// Handler wraps the router with CORS and access logging
func (s *Server) Handler(accessLog io.Writer, allowedOrigins []string) http.Handler {
	var h http.Handler = s.NewRouter()
	if len(allowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(allowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		)(h)
	}
	return handlers.LoggingHandler(accessLog, h)
}
