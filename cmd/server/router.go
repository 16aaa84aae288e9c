package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/storyloom/storyboard-api/internal/api"
	apiMiddleware "github.com/storyloom/storyboard-api/internal/api/middleware"
	"github.com/storyloom/storyboard-api/internal/ratelimit"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	jobHandler := api.NewJobHandler(app.jobService, app.results, app.logger)
	resultsHandler := api.NewResultsHandler(app.results, app.logger)

	r.Route("/api", func(r chi.Router) {
		// Job submission gets the tightest limit since each job fans out
		// into multiple model calls.
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.RateLimitMiddleware(
				app.limiter, app.tiers, ratelimit.CategoryJobSubmit))
			r.Post("/jobs", jobHandler.CreateJob)
		})

		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.RateLimitMiddleware(
				app.limiter, app.tiers, ratelimit.CategoryMetadata))
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Delete("/jobs/{id}", jobHandler.DeleteJob)
			r.Get("/jobs/{id}/result", jobHandler.GetJobResult)
			r.Get("/results", resultsHandler.ListResults)
			r.Get("/videos/{id}/results", resultsHandler.ListVideoResults)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
