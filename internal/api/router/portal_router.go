// Package router assembles the portal's HTTP surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openclinic/patient-portal/internal/view"
	"github.com/openclinic/patient-portal/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	ViewHandler    *view.Handler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(requestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", cfg.ViewHandler.List)
		r.Post("/refresh", cfg.ViewHandler.Refresh)
		r.Post("/{id}/cancel", cfg.ViewHandler.Cancel)
		r.Put("/{id}/status", cfg.ViewHandler.UpdateStatus)
		r.Handle("/stream", cfg.ViewHandler.Stream())
	})
	r.Get("/notifications", cfg.ViewHandler.Notifications)

	return r
}
