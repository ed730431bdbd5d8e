package http_test

import (
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/stackmesh/entitybus/internal/adapters/http"
	"github.com/stackmesh/entitybus/internal/adapters/http/handlers"
	"github.com/stackmesh/entitybus/internal/ports"
)

type emptyRegistry struct{}

func (emptyRegistry) Register(ports.HealthChecker) {}

func (emptyRegistry) CheckAll(context.Context) map[string]error {
	return map[string]error{}
}

func TestNewRouter_HealthRoutes(t *testing.T) {
	t.Parallel()

	router := httpadapter.NewRouter(handlers.NewHealthHandler(emptyRegistry{}))

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(nethttp.MethodGet, path, nethttp.NoBody)
		router.ServeHTTP(rec, req)

		if rec.Code != nethttp.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, nethttp.StatusOK)
		}
	}
}

func TestNewRouter_UnknownRoute(t *testing.T) {
	t.Parallel()

	router := httpadapter.NewRouter(handlers.NewHealthHandler(emptyRegistry{}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(nethttp.MethodGet, "/nope", nethttp.NoBody)
	router.ServeHTTP(rec, req)

	if rec.Code != nethttp.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, nethttp.StatusNotFound)
	}
}

func TestNewRouter_AppliesMiddleware(t *testing.T) {
	t.Parallel()

	var called bool
	mw := func(next nethttp.Handler) nethttp.Handler {
		return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	router := httpadapter.NewRouter(handlers.NewHealthHandler(emptyRegistry{}), mw)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(nethttp.MethodGet, "/healthz", nethttp.NoBody)
	router.ServeHTTP(rec, req)

	if !called {
		t.Error("middleware was not invoked")
	}
}
