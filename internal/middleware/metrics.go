package middleware

import (
	"net/http"
	"time"

	"api-gateway/internal/health"
)

// Metrics records each request against the gateway component: a request
// count, the status class of the response and the handler latency.
func Metrics(recorder health.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			recorder.Incr(health.ComponentGateway, health.MetricRequest)
			switch {
			case wrapped.statusCode >= 500:
				recorder.Incr(health.ComponentGateway, health.MetricServerError)
			case wrapped.statusCode >= 400:
				recorder.Incr(health.ComponentGateway, health.MetricClientError)
			}
			recorder.Observe(health.ComponentGateway, health.MetricLatency, time.Since(start))
		})
	}
}
