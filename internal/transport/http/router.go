// Package httptransport assembles the HTTP surface: operator endpoints for
// packages, conflicts and vocabularies, plus the authenticated device sync
// protocol.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"terrasync/internal/platform/metrics"
	"terrasync/internal/platform/middleware"
)

// Registrar mounts a handler's routes on a router.
type Registrar interface {
	Register(r chi.Router)
}

// Deps is everything the router needs from the composition root.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	TokenValidator middleware.TokenValidator
	RequestTimeout time.Duration

	Packages     Registrar
	Conflicts    Registrar
	Vocabularies Registrar
	Sync         Registrar
}

// NewRouter wires the middleware chain and mounts every handler. Sync routes
// sit behind collector token auth; operator routes are left to the fronting
// proxy, matching the deployment model of the registry back office.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.LatencyMiddleware(d.Metrics))
	r.Use(middleware.ContentTypeJSON)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		d.Packages.Register(r)
		d.Conflicts.Register(r)
		d.Vocabularies.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCollectorAuth(d.TokenValidator, d.Logger))
			d.Sync.Register(r)
		})
	})

	return r
}
