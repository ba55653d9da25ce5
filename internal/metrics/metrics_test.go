package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/malbeclabs/aquabot/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/charts/{name}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/ask", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	return r
}

func serve(h http.Handler, method, path string) {
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, nil))
}

func TestAquabot_Metrics_Middleware_RoutePattern(t *testing.T) {
	t.Parallel()

	h := newTestHandler()
	ok := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/charts/{name}", "200")
	bad := metrics.HTTPRequestsTotal.WithLabelValues("POST", "/ask", "400")
	okBefore, badBefore := testutil.ToFloat64(ok), testutil.ToFloat64(bad)

	serve(h, http.MethodGet, "/charts/a.png")
	serve(h, http.MethodGet, "/charts/b.png")
	serve(h, http.MethodPost, "/ask")

	require.Equal(t, okBefore+2, testutil.ToFloat64(ok))
	require.Equal(t, badBefore+1, testutil.ToFloat64(bad))
}

func TestAquabot_Metrics_Middleware_UnmatchedPaths(t *testing.T) {
	t.Parallel()

	h := newTestHandler()
	unmatched := metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")
	before := testutil.ToFloat64(unmatched)

	for _, path := range []string{"/wp-admin", "/a/b/c", "/charts"} {
		serve(h, http.MethodGet, path)
	}
	require.Equal(t, before+3, testutil.ToFloat64(unmatched))

	for _, path := range []string{"/wp-admin", "/a/b/c"} {
		require.Zero(t, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", path, "404")))
	}
}

func TestAquabot_Metrics_Middleware_UnknownMethod(t *testing.T) {
	t.Parallel()

	h := newTestHandler()
	other := metrics.HTTPRequestsTotal.WithLabelValues("other", "unmatched", "405")
	before := testutil.ToFloat64(other)

	serve(h, "BREW", "/ask")
	require.Equal(t, before+1, testutil.ToFloat64(other))
}
