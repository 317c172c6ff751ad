package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/bookswap-backend/internal/metrics"
)

// statusWriter keeps the first status sent to the client. A body written
// without WriteHeader counts as 200.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// HTTPMetrics records API latency per route pattern and tracks requests in flight.
// A request whose handler panics is observed as a 500.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		metrics.RequestsInFlight.Inc()

		panicked := true
		defer func() {
			metrics.RequestsInFlight.Dec()
			status := sw.status
			if panicked {
				status = http.StatusInternalServerError
			}
			metrics.RequestLatency.WithLabelValues(r.Method, routeLabel(r), strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(sw, r)
		panicked = false
	})
}

// routeLabel keeps label cardinality bounded: ids stay inside the chi pattern
// (/api/v1/exchanges/{id}) and unrouted paths collapse into one series.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if patt := rc.RoutePattern(); patt != "" {
			return patt
		}
	}
	return "unmatched"
}
