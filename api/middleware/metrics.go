package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type httpObserver interface {
	Observe(method, route string, status int, took time.Duration)
}

// Metrics records request counts and latency labelled by chi route pattern.
func Metrics(observer httpObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if observer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			observer.Observe(r.Method, route, status, time.Since(start))
		})
	}
}
