// Package controller contains the HTTP server for the control API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"helios/internal/controller/handlers"
	"helios/internal/controller/middleware"
)

// Options tunes the server's middleware.
type Options struct {
	Logger *slog.Logger

	// RateLimit is requests per second per client IP. 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// Server is the HTTP server for the control API.
type Server struct {
	httpServer *http.Server
}

// New creates a new control API server. metricsHandler may be nil.
func New(addr string, backend handlers.Backend, metricsHandler http.Handler, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := handlers.New(backend, opts.Logger)
	limit := middleware.NewRateLimiter(
		middleware.WithTTL(5*time.Minute),
		middleware.WithLimit(opts.RateLimit, opts.RateBurst),
	).Middleware()

	mux := http.NewServeMux()

	// Alarm management
	mux.Handle("POST /set", limit(http.HandlerFunc(h.SetAlarm)))
	mux.Handle("POST /rm", limit(http.HandlerFunc(h.RemoveAlarm)))
	mux.Handle("GET /list", limit(http.HandlerFunc(h.ListAlarms)))
	mux.Handle("GET /watch", limit(http.HandlerFunc(h.Watch)))

	// Ringing alarms
	mux.Handle("POST /dismiss", limit(http.HandlerFunc(h.Dismiss)))
	mux.Handle("GET /sessions", limit(http.HandlerFunc(h.Sessions)))
	mux.Handle("GET /last", limit(http.HandlerFunc(h.LastFired)))

	// Probes and metrics are not rate limited.
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	handler := middleware.RequestID(middleware.AccessLog(opts.Logger)(mux))

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
