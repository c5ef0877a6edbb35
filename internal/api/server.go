// Package api serves the dashboard over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/carbon-dashboard/internal/config"
	"github.com/sells-group/carbon-dashboard/internal/dashboard"
	"github.com/sells-group/carbon-dashboard/internal/marketcap"
)

const healthTimeout = 2 * time.Second

// DashboardLoader loads one dashboard response.
type DashboardLoader interface {
	Load(ctx context.Context, q dashboard.Query) (*dashboard.Result, error)
}

// DiagnosticsSource reports the latest market-cap diagnostics.
type DiagnosticsSource interface {
	Diagnostics() marketcap.Diagnostics
}

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestObserver records completed requests.
type RequestObserver interface {
	ObserveRequest(route, method string, code int, elapsed time.Duration)
}

// Deps are the collaborators the router serves. Diagnostics, Metrics and
// Observer are optional.
type Deps struct {
	Dashboards  DashboardLoader
	Diagnostics DiagnosticsSource
	DB          Pinger
	Metrics     http.Handler
	Observer    RequestObserver
}

type server struct {
	deps Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps, cfg config.ServerConfig) http.Handler {
	s := &server{deps: deps}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	r.Use(accessLog(deps.Observer))
	r.Use(rateLimit(cfg.RateLimit, cfg.RateBurst))

	r.Get("/health", s.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/marketcap/diagnostics", s.handleDiagnostics)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	scope, err := dashboard.ParseScope(params.Get("scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Dashboards.Load(r.Context(), dashboard.Query{
		Scope:     scope,
		Country:   params.Get("country"),
		CompanyID: params.Get("companyId"),
	})
	switch {
	case errors.Is(err, dashboard.ErrInvalidScope), errors.Is(err, dashboard.ErrInvalidCountry):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		zap.L().Error("api: dashboard load failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("scope", string(scope)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Diagnostics == nil {
		writeJSON(w, http.StatusOK, marketcap.Diagnostics{
			Source: marketcap.Source,
			Status: marketcap.StatusSkipped,
			Reason: marketcap.ReasonDisabled,
		})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Diagnostics.Diagnostics())
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.deps.DB.Ping(ctx); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
