// Package server hosts the hub's operational HTTP surface: a health endpoint
// aggregating the liveness of the broker connection, the message store, and
// the rules registry breaker. The hub itself has no inbound HTTP API; all
// payload traffic arrives over the queues.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"epcis-hub/internal/middleware"
)

// HealthChecker probes one dependency; a nil return means healthy.
type HealthChecker func() error

// Server represents the operational HTTP server
type Server struct {
	srv *http.Server
}

// New creates the ops server with the given named health checks.
func New(port string, checks map[string]HealthChecker) *Server {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.HandleFunc("/health", healthHandler(checks)).Methods(http.MethodGet)

	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// healthHandler runs every check and reports per-dependency results. Any
// failing check degrades the overall status and the response is 503 so
// orchestrators restart or route around the instance.
func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(); err != nil {
				status = "degraded"
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"checks": results,
		})
	}
}

// Start starts the server in a goroutine
func (s *Server) Start() error {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
