// Audiographus - Multi-Source Music Scrobble Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/audiographus

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/audiographus/internal/metrics"
	"github.com/tomtom215/audiographus/internal/middleware"
)

// Built-in per-IP rate limits, requests per minute. A zero in the
// config falls back to these. Dashboards poll status frequently so
// their budget is the widest; media-server webhooks fire per play;
// auth callbacks are rare and a burst of them means something is
// redirecting in a loop.
const (
	DefaultDashboardRateLimit = 300
	DefaultWebhookRateLimit   = 100
	DefaultAuthRateLimit      = 20
)

// NewRouter assembles the full route tree around the handler.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(h.cfg.API.CORSOrigins))
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimiddleware.Compress(5, "application/json"))

	// Media server webhooks live at the root, matching what the
	// upstream apps expect to be pointed at.
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit("webhooks", h.cfg.API.RateLimit.Webhooks, DefaultWebhookRateLimit))
		r.Post("/plex", h.PlexWebhook)
		r.Post("/tautulli", h.TautulliWebhook)
		r.Post("/jellyfin", h.JellyfinWebhook)
	})

	// OAuth and token callbacks. Static siblings (/plex, /healthz)
	// win over the {service} parameter, chi backtracks for the rest.
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit("auth", h.cfg.API.RateLimit.Auth, DefaultAuthRateLimit))
		r.Get("/{service}/callback", h.AuthCallback)
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(r chi.Router) {
			r.Use(h.rateLimit("webhooks", h.cfg.API.RateLimit.Webhooks, DefaultWebhookRateLimit))
			r.Post("/webscrobbler", h.WebScrobbler)
			r.Post("/webscrobbler/{slug}", h.WebScrobbler)
		})

		api.Group(func(r chi.Router) {
			r.Use(h.rateLimit("dashboard", h.cfg.API.RateLimit.Dashboard, DefaultDashboardRateLimit))

			r.Get("/status", h.Status)
			r.Get("/recent", h.Recent)
			r.Get("/scrobbled", h.Scrobbled)
			r.Get("/deadletter", h.DeadLetters)
			r.Get("/events", h.Events)

			r.Group(func(r chi.Router) {
				r.Use(h.requireToken)
				r.Post("/deadletter/{client}/{id}/retry", h.RetryDeadLetter)
				r.Delete("/deadletter/{client}/{id}", h.RemoveDeadLetter)
				r.Post("/source/{name}/poll", h.PollSource)
			})
		})
	})

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	return r
}

// corsHandler builds the CORS middleware from the configured origins.
// No configured origins means the JSON API answers any dashboard, the
// same posture as serving without credentials.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Api-Token", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	})
}

// rateLimit builds a per-IP limiter for one route group. Hitting the
// limit answers 429 in the standard envelope and bumps the counter so
// a noisy integration shows up on the metrics page.
func (h *Handler) rateLimit(group string, configured, fallback int) func(http.Handler) http.Handler {
	if h.cfg.API.RateLimit.Disabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limit := configured
	if limit <= 0 {
		limit = fallback
	}

	return httprate.Limit(
		limit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(group).Inc()
			respondError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Rate limit exceeded, slow down")
		}),
	)
}
