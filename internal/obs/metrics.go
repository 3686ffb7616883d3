package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_auth_attempts_total",
			Help: "Widget token exchanges by outcome.",
		},
		[]string{"result"},
	)

	documentOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_documents_ops_total",
			Help: "Document store operations by operation and outcome.",
		},
		[]string{"op", "result"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_cache_lookups_total",
			Help: "Widget cache lookups by result.",
		},
		[]string{"result"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the readiness check last succeeded.",
	})

	initOnce sync.Once
)

// Init registers the metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			authAttempts, documentOps, cacheLookups, ready)
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuth counts one token exchange outcome.
func ObserveAuth(result string) {
	authAttempts.WithLabelValues(result).Inc()
}

// ObserveDocumentOp counts one document store operation.
func ObserveDocumentOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	documentOps.WithLabelValues(op, result).Inc()
}

// ObserveCache counts a widget cache hit or miss.
func ObserveCache(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// SetReady records the last readiness check result.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Instrument measures request count, latency and concurrency.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

var fixedPaths = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/auth":                 true,
	"/api/save":             true,
	"/api/list-json-titles": true,
	"/api/rename-json":      true,
	"/api/events":           true,
}

// CanonicalPath collapses identifiers in a request path so metric labels stay bounded.
func CanonicalPath(raw string) string {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if fixedPaths[path] {
		return path
	}
	switch {
	case strings.HasPrefix(path, "/api/get-json/"):
		return "/api/get-json/:title"
	case strings.HasPrefix(path, "/api/delete-json/"):
		return "/api/delete-json/:title"
	case strings.HasPrefix(path, "/script/widget/config/"):
		return "/script/widget/config/:id"
	case strings.HasPrefix(path, "/js/bundle_") && strings.HasSuffix(path, ".js"):
		return "/js/bundle_:locale.js"
	}
	if strings.Count(path, "/") == 1 {
		return "/:widget_id"
	}
	return "other"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the instrumentation wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
