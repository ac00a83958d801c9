// Package httpapi exposes cooking sessions over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	AllowAnonymous bool
	// RateLimit is requests per minute per client IP on the cooking routes.
	RateLimit int
}

func NewRouter(e Engine, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/cooking", func(r chi.Router) {
		r.Use(ExtractUser(opts.AllowAnonymous))
		r.Use(rateLimit(opts.RateLimit))

		r.Post("/start", startCooking(e))
		r.Get("/{id}/current", currentStep(e))
		r.Post("/{id}/next", nextStep(e))
		r.Get("/{id}/events", streamEvents(e))
	})

	return r
}
