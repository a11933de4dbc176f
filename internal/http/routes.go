// Package http carries the router, middleware chain and the metrics and
// error plumbing of the API server.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cei-unisinos/ici-backend/internal/http/handlers"
	"github.com/cei-unisinos/ici-backend/internal/rate"
)

// RouterConfig wires the endpoint handlers and their per-route limiters.
type RouterConfig struct {
	API     *handlers.API
	Metrics http.Handler

	AdminAPIKey string

	// Tighter limiters for the endpoints that send email.
	DownloadLimiter rate.Limiter
	ContactLimiter  rate.Limiter
}

// NewRouter builds the chi router with every route mounted. The outer
// middleware chain (logging, recover, metrics, global rate limit, CORS)
// wraps the returned handler in Chain.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", cfg.API.Readyz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/index", cfg.API.Index)
		r.Get("/index/countries", cfg.API.Countries)
		r.Get("/index/years", cfg.API.Years)
		r.Get("/index/ranking", cfg.API.Ranking)

		r.Post("/downloads", RateLimitEndpoint(cfg.DownloadLimiter, cfg.API.CreateDownload))
		r.Get("/downloads/file", cfg.API.DownloadFile)

		r.Post("/contact", RateLimitEndpoint(cfg.ContactLimiter, cfg.API.Contact))

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdminKey(cfg.AdminAPIKey))
			r.Post("/email/test", cfg.API.AdminEmailTest)
			r.Get("/downloads", cfg.API.AdminListDownloads)
			r.Post("/sync", cfg.API.AdminSync)
		})
	})

	return r
}

// Chain applies the standard middleware stack around the router.
func Chain(h http.Handler, corsOrigins []string, limiter rate.Limiter) http.Handler {
	return WithLogging(
		WithRecover(
			WithRequestID(
				WithMetrics(
					WithRateLimit(
						WithSecurityHeaders(
							WithCORS(h, corsOrigins),
						),
						limiter,
					),
				),
			),
		),
	)
}
