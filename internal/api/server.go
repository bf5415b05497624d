// Package api exposes the worker's small operational HTTP surface:
// liveness, processing counters, and prometheus metrics. The feedback
// pipeline itself has no synchronous callers; everything here is
// observability only.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/feedback-processor/internal/pkg/httputil"
)

// StatsSource reports running counters for the /stats endpoint.
type StatsSource interface {
	Stats() map[string]int64
}

// Server is the ops HTTP server.
type Server struct {
	server *http.Server
}

// NewServer builds the ops server on the given listen address.
func NewServer(addr string, stats StatsSource, gatherer prometheus.Gatherer) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]any{
			"time":  time.Now().UTC().Format(time.RFC3339),
			"stats": stats.Stats(),
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe starts the server and blocks.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
