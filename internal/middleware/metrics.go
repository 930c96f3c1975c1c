package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenpath/greenpath/internal/metrics"
)

// Metrics records request counts, durations and in-flight requests.
//
// The route label is chi's matched pattern ("/api/events/{id}"), not the
// raw path, so ids never explode the label cardinality. Unmatched requests
// are grouped under "unmatched".
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)
			m.RequestStarted()

			next.ServeHTTP(wrapped, r)

			m.RequestFinished(r.Method, routePattern(r), strconv.Itoa(wrapped.statusCode), time.Since(start).Seconds())
		})
	}
}

// routePattern is only complete after the router has matched the request,
// i.e. after next.ServeHTTP returns.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
