package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-pm-server/auth"
	"github.com/jrsteele09/go-pm-server/internal/config"
	"github.com/jrsteele09/go-pm-server/internal/metrics"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	router   chi.Router
	routes   []string
	config   config.Config
	auth     *auth.AuthenticationService
	metrics  metrics.Recorder
	gatherer prometheus.Gatherer
	limiter  *RateLimiter
}

type ServerOption func(*Server)

// WithMetrics records request and gate metrics and serves gatherer on /metrics.
func WithMetrics(recorder metrics.Recorder, gatherer prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.metrics = recorder
		s.gatherer = gatherer
	}
}

// WithRateLimiter throttles the /api/auth routes per client address.
func WithRateLimiter(limiter *RateLimiter) ServerOption {
	return func(s *Server) {
		s.limiter = limiter
	}
}

func New(config config.Config, authService *auth.AuthenticationService, options ...ServerOption) (*Server, error) {
	if authService == nil {
		return nil, errors.New("[Server New] authentication service is required")
	}

	s := &Server{
		env:     config.GetEnv(),
		router:  chi.NewRouter(),
		config:  config,
		auth:    authService,
		metrics: metrics.Noop{},
	}
	for _, opt := range options {
		opt(s)
	}

	s.router.Use(s.GlobalMiddleware()...)
	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	method, path, found := strings.Cut(pattern, " ")
	if !found {
		s.router.Handle(method, handler)
		return
	}
	s.router.Method(method, path, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.RegisterRouteHandler(pattern, http.HandlerFunc(handler))
}

// Routes returns the registered route patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != config.EnvDevelopment {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}
