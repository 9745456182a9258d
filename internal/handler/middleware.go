package handler

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/kdduha/vick-gateway/internal/ingress"
	"github.com/kdduha/vick-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	msgBusy     = "server is busy, try again later"
	msgInternal = "internal error"
)

// Recoverer turns a handler panic into a partial envelope instead of an
// empty 500.
func Recoverer(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.WithFields(logrus.Fields{
					"panic":      rec,
					"path":       r.URL.Path,
					"request_id": middleware.GetReqID(r.Context()),
					"stack":      string(debug.Stack()),
				}).Error("handler panicked")

				writeEnvelope(w, models.NewPartialEnvelope(ingress.SourceFor(r.Header.Get("Content-Type")), msgInternal))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Throttle caps concurrent requests at limit. A request waits up to
// backlogTimeout for a slot and otherwise gets a partial envelope.
func Throttle(limit int, backlogTimeout time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	tokens := make(chan struct{}, limit)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case tokens <- struct{}{}:
			default:
				timer := time.NewTimer(backlogTimeout)
				defer timer.Stop()

				select {
				case tokens <- struct{}{}:
				case <-timer.C:
					writeEnvelope(w, models.NewPartialEnvelope(ingress.SourceFor(r.Header.Get("Content-Type")), msgBusy))
					return
				case <-r.Context().Done():
					return
				}
			}
			defer func() { <-tokens }()

			next.ServeHTTP(w, r)
		})
	}
}

// Deadline bounds the request context. Handlers observe the deadline through
// the context and still answer with an envelope.
func Deadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
