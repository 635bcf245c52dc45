// Package apiserver exposes the HTTP front door: incident submission and
// retrieval, health and readiness checks, and Prometheus metrics.
package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsloop/triage/internal/logging"
	"github.com/opsloop/triage/internal/mcp"
	"github.com/opsloop/triage/internal/models"
	"github.com/opsloop/triage/internal/store"
)

// Submitter schedules background investigations. *runner.Runner satisfies it.
type Submitter interface {
	Submit(incidentID, description string) error
}

// ToolInfo reports provider and catalog state for health responses.
// *mcp.Registry satisfies it.
type ToolInfo interface {
	Providers() []mcp.ProviderStatus
	Catalog() []models.ToolDescriptor
}

// Server handles HTTP API requests
type Server struct {
	port     int
	server   *http.Server
	router   *http.ServeMux
	logger   *logging.Logger
	store    store.IncidentStore
	runner   Submitter
	toolInfo ToolInfo
	gatherer prometheus.Gatherer
}

// New creates the API server. The gatherer may be nil to disable /metrics.
func New(port int, st store.IncidentStore, runner Submitter, toolInfo ToolInfo, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		port:     port,
		router:   http.NewServeMux(),
		logger:   logging.GetLogger("api"),
		store:    st,
		runner:   runner,
		toolInfo: toolInfo,
		gatherer: gatherer,
	}

	s.registerHandlers()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.corsMiddleware(s.router),
	}

	return s
}

// registerHandlers registers all HTTP handlers
func (s *Server) registerHandlers() {
	s.router.HandleFunc("/api/v1/incidents", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handleCreateIncident(w, r)
		case http.MethodGet:
			s.handleListIncidents(w, r)
		default:
			s.handleMethodNotAllowed(w, r)
		}
	})
	s.router.HandleFunc("/api/v1/incidents/", s.withMethod(http.MethodGet, s.handleGetIncident))

	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/ready", s.handleReady)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Start implements the lifecycle.Component interface
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server on port %d", s.port)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("API server started and listening on port %d", s.port)
	return nil
}

// Stop implements the lifecycle.Component interface
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")

	done := make(chan error, 1)
	go func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.server.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("HTTP server shutdown error: %v", err)
			return err
		}
		s.logger.Info("API server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("API server shutdown timeout")
		return ctx.Err()
	}
}

// Name implements the lifecycle.Component interface
func (s *Server) Name() string {
	return "API Server"
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() int {
	return s.port
}

// handleHealth reports service health along with provider and catalog state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "healthy",
	}

	if s.toolInfo != nil {
		providers := s.toolInfo.Providers()
		catalog := s.toolInfo.Catalog()
		toolNames := make([]string, 0, len(catalog))
		for _, tool := range catalog {
			toolNames = append(toolNames, tool.Name)
		}
		response["providers"] = providers
		response["tools"] = toolNames
		response["tool_count"] = len(toolNames)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeJSON(w, response)
}

// handleReady reports readiness. The service is ready once constructed;
// a degraded tool catalog does not block readiness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeJSON(w, map[string]interface{}{"ready": true})
}
