package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "gateway"

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	analysisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Number of envelopes produced, by terminal outcome",
		},
		[]string{"source", "status", "outcome"},
	)

	modelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_duration_seconds",
			Help:      "Model invocation latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "outcome"},
	)

	ingressBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingress_bytes",
			Help:      "Size of decoded uploads in bytes",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 10),
		},
		[]string{"source"},
	)

	filePreprocessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_preprocess_total",
			Help:      "Number of preprocessed uploads",
		},
		[]string{"status", "mime"},
	)

	filePreprocessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_preprocess_duration_seconds",
			Help:      "Upload preprocessing duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status", "mime"},
	)
)

func HttpRequestsTotal(method, path, code string) {
	httpRequestsTotal.With(prometheus.Labels{
		"method": method,
		"path":   path,
		"code":   code,
	}).Inc()
}

func HttpRequestDuration(method, path string, duration time.Duration) {
	httpRequestDuration.With(prometheus.Labels{
		"method": method,
		"path":   path,
	}).Observe(duration.Seconds())
}

func AnalysisTotal(source, status, outcome string) {
	analysisTotal.With(prometheus.Labels{
		"source":  source,
		"status":  status,
		"outcome": outcome,
	}).Inc()
}

func ModelDuration(provider, outcome string, duration time.Duration) {
	modelDuration.With(prometheus.Labels{
		"provider": provider,
		"outcome":  outcome,
	}).Observe(duration.Seconds())
}

func IngressBytes(source string, size int) {
	ingressBytes.With(prometheus.Labels{"source": source}).Observe(float64(size))
}

func FilePreprocessTotal(status, mime string) {
	filePreprocessTotal.With(prometheus.Labels{
		"status": status,
		"mime":   mime,
	}).Inc()
}

func FilePreprocessDuration(status, mime string, duration time.Duration) {
	filePreprocessDuration.With(prometheus.Labels{
		"status": status,
		"mime":   mime,
	}).Observe(duration.Seconds())
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HttpRequestsTotal(r.Method, path, strconv.Itoa(ww.status))
		HttpRequestDuration(r.Method, path, time.Since(start))
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying flusher.
func (w *statusResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
