// Package http provides the operational HTTP surface: health endpoints and
// server lifecycle. Commands and events travel over the message bus, not
// HTTP.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stackmesh/entitybus/internal/adapters/http/handlers"
)

// NewRouter creates the operational HTTP handler. Middleware is applied
// globally in the order given.
func NewRouter(
	healthHandler *handlers.HealthHandler,
	middlewares ...func(http.Handler) http.Handler,
) http.Handler {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler.Liveness)
	r.Get("/readyz", healthHandler.Readiness)

	return r
}
