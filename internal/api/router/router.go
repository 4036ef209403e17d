package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/wa-booking-assistant/internal/bookings"
	"github.com/wolfman30/wa-booking-assistant/internal/dialogue"
	httpmiddleware "github.com/wolfman30/wa-booking-assistant/internal/http/middleware"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck = func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Conversations  *dialogue.Handler
	Bookings       *bookings.Handler
	MetricsHandler http.Handler

	// ServiceJWTSecret protects /v1. Empty disables auth.
	ServiceJWTSecret string
	RateLimitRPS     float64
	RateLimitBurst   int

	// HealthChecks are named probes run by /ready.
	HealthChecks map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		public.Get("/ready", readiness(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/v1", func(api chi.Router) {
		api.Use(httpmiddleware.ServiceJWT(cfg.ServiceJWTSecret))
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		if cfg.Conversations != nil {
			api.Mount("/conversations", cfg.Conversations.Routes())
		}
		if cfg.Bookings != nil {
			api.Mount("/merchants", cfg.Bookings.Routes())
		}
	})

	return r
}

func readiness(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		failures := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failures": failures})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
