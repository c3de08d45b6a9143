package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/plain", func(w http.ResponseWriter, r *http.Request) {})

	teapot := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "418")
	plain := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/plain", "200")
	beforeTeapot := testutil.ToFloat64(teapot)
	beforePlain := testutil.ToFloat64(plain)

	for _, path := range []string{"/items/1", "/items/2", "/plain"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, beforeTeapot+2, testutil.ToFloat64(teapot))
	assert.Equal(t, beforePlain+1, testutil.ToFloat64(plain))
}
