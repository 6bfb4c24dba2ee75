// Package httpapi assembles the HTTP router for the job API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediagen/internal/http/handlers"
	"mediagen/internal/infra"
	"mediagen/internal/middleware"
)

func NewRouter(app *handlers.App, logger infra.Logger, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", app.GenerateMedia)
		r.Get("/status/{job_id}", app.JobStatus)
		r.Get("/download/{job_id}", app.JobDownload)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", app.JobsList)
			r.Post("/{job_id}/cancel", app.JobCancel)
			r.Get("/{job_id}/metadata", app.JobMetadata)
		})
	})

	return r
}
