package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kdduha/vick-gateway/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
)

type RouterOptions struct {
	AllowedOrigin          string
	ThrottleLimit          int
	ThrottleBacklogTimeout time.Duration
	Timeout                time.Duration
	Compress               bool
}

func NewRouter(h *AnalyseHandler, logger *logrus.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use([]func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}),
		Recoverer(logger),
		metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{opts.AllowedOrigin},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
			MaxAge:         300,
		}),
	}...)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	analyse := func(r chi.Router) {
		r.Use(
			Throttle(opts.ThrottleLimit, opts.ThrottleBacklogTimeout),
			Deadline(opts.Timeout),
		)
		if opts.Compress {
			r.Use(Compress)
		}
		// Inner recoverer: a panic envelope must go through the encoder.
		r.Use(Recoverer(logger))
		r.Post("/analyse", h.Analyse)
		r.Post("/analyse/stream", h.AnalyseStream)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Group(analyse)
	})
	r.Group(analyse)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Handle("/metrics", promhttp.Handler())

	return r
}
