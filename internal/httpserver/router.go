// Package httpserver assembles the HTTP surface: middleware, health probes,
// auth routes and the versioned API.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/runsheetapp/runsheet/internal/api"
	"github.com/runsheetapp/runsheet/internal/auth"
	"github.com/runsheetapp/runsheet/internal/config"
	"github.com/runsheetapp/runsheet/internal/httpserver/ratelimit"
	"github.com/runsheetapp/runsheet/internal/metrics"
	"github.com/runsheetapp/runsheet/internal/mutation"
	"github.com/runsheetapp/runsheet/internal/store"
)

// NewRouter wires all HTTP routes.
func NewRouter(cfg *config.Config, st *store.Store, authService *auth.Service, mutations *mutation.Service) http.Handler {
	r := chi.NewRouter()

	// Auth endpoints: 5 requests per second, burst of 10
	authRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)
	// API endpoints: 20 requests per second, burst of 50 (clients replay queued
	// mutations in bursts after reconnecting)
	apiRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(authRateLimiter.Middleware())
		r.Get("/login", authService.BeginOAuth)
		r.Get("/callback", authService.HandleOAuthCallback)
		r.With(authService.RequireAuth).Post("/logout", authService.Logout)
	})

	apiHandler := api.NewHandler(mutations, authService)
	r.Route("/v1", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		r.Use(authService.RequireAuth)
		apiHandler.Routes(r)
	})

	return r
}
