package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"mask-relay/internal/queue"
	"mask-relay/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	// Registry collects the HTTP metrics. Nil uses the Prometheus default.
	Registry *prometheus.Registry
}

type APIServer struct {
	listenAddr          string
	allowedOrigins      []string
	requestQueueManager *queue.RequestQueueManager
	routeRegistrars     []RouteRegistrar
	handler             *websocket.Handler
	metrics             *metrics
	server              *http.Server
}

func NewAPIServer(cfg Config, rqm *queue.RequestQueueManager, handler *websocket.Handler, registrars ...RouteRegistrar) *APIServer {
	s := &APIServer{
		listenAddr:          cfg.ListenAddr,
		allowedOrigins:      cfg.AllowedOrigins,
		requestQueueManager: rqm,
		handler:             handler,
		routeRegistrars:     registrars,
		metrics:             newMetrics(cfg.Registry, cfg.ListenAddr, rqm),
	}
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the instrumented mux with every registered route and /metrics.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	return s.metrics.instrument(mux)
}

// Run blocks until the server stops. A graceful Shutdown is not an error.
func (s *APIServer) Run() error {
	log.Printf("Server listening on http://localhost%s", s.listenAddr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Hijacked
// websocket connections are not tracked here; the hub closes those.
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *APIServer) Relay() *websocket.Handler {
	return s.handler
}
