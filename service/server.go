// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package service exposes the routing engine over HTTP: routing and cost
// prediction endpoints, feedback hooks, experiment management and
// Prometheus metrics. The service carries no authentication; it is expected
// to sit behind the platform gateway.
package service

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"axonflow/router/agentpool"
	"axonflow/router/routing"
	"axonflow/router/shared/logger"
)

// Server is the HTTP front of the routing engine.
type Server struct {
	engine  *routing.Engine
	pool    agentpool.Pool
	metrics *Metrics
	log     *logger.Logger

	registry *prometheus.Registry
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(log *logger.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithMetrics reuses an existing metrics/registry pair instead of creating
// fresh ones. Used when the same Metrics instance is also wired into the
// engine as its observer.
func WithMetrics(metrics *Metrics, registry *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.metrics = metrics
		s.registry = registry
	}
}

// NewServer creates a Server for the given engine and pool. The server's
// Metrics implement routing.Observer; wire them into the engine with
// routing.WithObserver(server.Metrics()).
func NewServer(engine *routing.Engine, pool agentpool.Pool, opts ...ServerOption) *Server {
	s := &Server{
		engine: engine,
		pool:   pool,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.metrics = NewMetrics(s.registry)
	}
	if s.log == nil {
		s.log = logger.New("routing-service")
	}
	return s
}

// Metrics returns the server's metrics observer.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler builds the full HTTP handler: routes, request-id middleware and
// CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	r.Use(s.requestIDMiddleware)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-User-ID"},
	}).Handler(r)
}

// RegisterRoutes registers all routing service routes with a gorilla/mux
// router.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/route", s.RouteRequest).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/costs/predict", s.PredictCosts).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/feedback/outcome", s.RecordOutcome).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/feedback/cost", s.RecordCost).Methods("POST", "OPTIONS")

	r.HandleFunc("/api/v1/experiments", s.CreateExperiment).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/experiments/{id}/start", s.StartExperiment).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/experiments/{id}/complete", s.CompleteExperiment).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/experiments/{id}/results", s.ExperimentResults).Methods("GET", "OPTIONS")

	r.HandleFunc("/api/v1/agents", s.ListAgents).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/decisions", s.RecentDecisions).Methods("GET", "OPTIONS")
	r.HandleFunc("/health", s.Health).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
}

// requestIDMiddleware assigns an X-Request-ID when the caller sent none and
// echoes it on the response.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			r.Header.Set("X-Request-ID", requestID)
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}
