// Package api exposes the explanation engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// RequestTimeout bounds /explain and /ingest. Zero disables the limit.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Server routes the API endpoints and any extra handlers mounted on it.
type Server struct {
	mux  *http.ServeMux
	opts Options
}

// NewServer registers GET /health, POST /explain and POST /ingest.
func NewServer(engine Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &handlers{engine: engine, logger: opts.Logger}

	s := &Server{mux: http.NewServeMux(), opts: opts}
	s.mux.HandleFunc("GET /health", h.health)
	s.mux.Handle("POST /explain", s.withTimeout(http.HandlerFunc(h.explain)))
	s.mux.Handle("POST /ingest", s.withTimeout(http.HandlerFunc(h.ingest)))
	return s
}

// Handle mounts an additional handler, e.g. the MCP endpoint.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = CORSMiddleware(s.opts.AllowedOrigins)(h)
	h = LoggingMiddleware(s.opts.Logger)(h)
	h = RequestIDMiddleware()(h)
	h = RecoveryMiddleware(s.opts.Logger)(h)
	return h
}

// withTimeout answers 503 after RequestTimeout. The request context is
// cancelled then; an ingest already past validation still completes.
func (s *Server) withTimeout(h http.Handler) http.Handler {
	if s.opts.RequestTimeout <= 0 {
		return h
	}
	return http.TimeoutHandler(h, s.opts.RequestTimeout, `{"detail":"request timed out"}`)
}
