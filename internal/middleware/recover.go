package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/baharkarakas/bookswap-backend/internal/api/httpx"
	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/logger"
	"github.com/baharkarakas/bookswap-backend/internal/metrics"
)

// Recover answers a panicking handler with the internal_error envelope.
// http.ErrAbortHandler passes through untouched.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			metrics.HandlerPanics.Inc()
			logger.From(r.Context()).Error("handler panicked",
				"method", r.Method, "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
			httpx.WriteError(w, http.StatusInternalServerError, apperr.Code(nil), "internal error", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
