package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"contentpipe/internal/middleware"
)

// NewRouter builds the review service routes.
func NewRouter(app *App, rateLimitPerMin int) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	if rateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(rateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/review", func(r chi.Router) {
		r.Get("/pending", app.ListPending)
		r.Get("/pending/archive", app.PendingArchive)
		r.Get("/failed", app.ListFailed)
		r.Post("/{id}/approve", app.Approve)
		r.Post("/{id}/reject", app.Reject)
		r.Post("/{id}/requeue", app.Requeue)
	})

	return r
}
