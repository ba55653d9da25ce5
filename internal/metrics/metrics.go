package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aquabot_build_info",
		Help: "Build information of the aquabot service",
	}, []string{"version", "commit", "date"})

	TableLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquabot_table_loads_total", Help: "Table load attempts by table and result.",
	}, []string{"table", "result"})
	TableRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aquabot_table_rows", Help: "Rows held per loaded table.",
	}, []string{"table"})
	DataLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aquabot_data_loaded", Help: "1 when all tables loaded at startup, 0 otherwise.",
	})

	Questions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquabot_questions_total", Help: "Questions answered by detected intent.",
	}, []string{"intent"})

	ChartRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquabot_chart_renders_total", Help: "Chart render outcomes by metric.",
	}, []string{"metric", "result"})
	ChartRenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aquabot_chart_render_duration_seconds",
		Help:    "Duration of chart encoding and storage in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"metric"})
	ChartCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aquabot_chart_cache_hits_total", Help: "Chart requests served from the render cache.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquabot_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aquabot_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aquabot_http_requests_in_flight",
		Help: "Number of HTTP requests currently being processed",
	})
)

// unmatchedRoute is the path label for requests no route handled, so probing
// arbitrary paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// Middleware records request count, latency and in-flight requests labelled
// by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		method, route := methodLabel(r.Method), routeLabel(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	})
}

func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePattern() == "" {
		return unmatchedRoute
	}
	return rctx.RoutePattern()
}

func methodLabel(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return m
	default:
		return "other"
	}
}
