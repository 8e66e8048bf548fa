package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soochol/hookboard/internal/observability"
	"github.com/soochol/hookboard/internal/repository"
	"github.com/soochol/hookboard/internal/services"
)

type Server struct {
	workflows    *services.WorkflowService
	orchestrator *services.Orchestrator
	execs        repository.ExecutionRepository
	limiter      *services.ConcurrencyLimiter
	monitor      *services.ConnectivityMonitor
	metrics      *observability.Metrics
	gatherer     prometheus.Gatherer
}

func NewServer(workflows *services.WorkflowService, orchestrator *services.Orchestrator, execs repository.ExecutionRepository) *Server {
	return &Server{
		workflows:    workflows,
		orchestrator: orchestrator,
		execs:        execs,
	}
}

// SetConcurrencyLimiter exposes limiter stats at /api/stats.
func (s *Server) SetConcurrencyLimiter(limiter *services.ConcurrencyLimiter) {
	s.limiter = limiter
}

// SetMonitor enables the /api/monitor endpoints.
func (s *Server) SetMonitor(m *services.ConnectivityMonitor) {
	s.monitor = m
}

// SetMetrics installs the request metrics middleware and serves g at /metrics.
func (s *Server) SetMetrics(m *observability.Metrics, g prometheus.Gatherer) {
	s.metrics = m
	s.gatherer = g
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/healthz", s.healthz)
	if s.gatherer != nil {
		r.Handle("/metrics", observability.Handler(s.gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", s.createWorkflow)
			r.Get("/", s.listWorkflows)
			r.Get("/{id}", s.getWorkflow)
			r.Put("/{id}", s.updateWorkflow)
			r.Delete("/{id}", s.deleteWorkflow)
			r.Post("/{id}/trigger", s.triggerWorkflow)
			r.Post("/{id}/test", s.testConnection)
			r.Get("/{id}/executions", s.listWorkflowExecutions)
		})
		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.listExecutions)
			r.Get("/{id}", s.getExecution)
		})
		r.Get("/events", s.streamStatus)
		r.Get("/stats", s.getStats)
		if s.monitor != nil {
			r.Get("/monitor", s.listProbes)
			r.Post("/monitor/run", s.runMonitor)
		}
	})

	return r
}
