package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/geoserve/confgen/pkg/generator"
	"github.com/geoserve/confgen/pkg/httputil"
	"github.com/geoserve/confgen/pkg/observability"
	"github.com/geoserve/confgen/pkg/swagger"
)

// Server routes generation requests to the task manager.
type Server struct {
	manager       *generator.Manager
	defaultTenant string
	logger        *observability.Logger
	metrics       *observability.Metrics
	router        *mux.Router
}

// NewServer creates an API server. metrics may be nil to disable the
// metrics endpoint and instrumentation.
func NewServer(manager *generator.Manager, defaultTenant string, logger *observability.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Server{
		manager:       manager,
		defaultTenant: defaultTenant,
		logger:        logger,
		metrics:       metrics,
		router:        mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc("/generate_configs", s.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/generate_configs/stream", s.handleGenerateStream).Methods(http.MethodPost)
	r.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}", s.handleTask).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/log", s.handleTaskLog).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	swagger.NewHandlers().RegisterRoutes(r)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
}

// Handler returns the server's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
	}
	if s.metrics != nil {
		middlewares = append(middlewares, httputil.MetricsMiddleware(s.metrics, routePath))
	}
	return httputil.Chain(middlewares...)(s.router)
}

// routePath labels metrics with the route template, not the raw URL, to
// keep label cardinality bounded.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
