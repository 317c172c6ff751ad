package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/bookswap-backend/internal/auth"
	"github.com/baharkarakas/bookswap-backend/internal/metrics"
	"github.com/baharkarakas/bookswap-backend/internal/models"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestRateLimitPerClient(t *testing.T) {
	h := RateLimit(1, 2)(ok)

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, http.StatusOK, serve(h, first).Code)
	require.Equal(t, http.StatusOK, serve(h, first).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(h, first).Code)

	// another client has its own bucket
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	require.Equal(t, http.StatusOK, serve(h, second).Code)

	// same address, authenticated user: keyed by user instead
	authed := first.WithContext(WithUser(first.Context(), models.Principal{UserID: "u1"}))
	require.Equal(t, http.StatusOK, serve(h, authed).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0, 0)(ok)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for i := 0; i < 100; i++ {
		require.Equal(t, http.StatusOK, serve(h, r).Code)
	}
}

func TestAuthAndRequireRole(t *testing.T) {
	tm := auth.NewTokenManager("a", "r", "test", time.Minute, time.Hour)
	m := NewAuthMiddleware(tm)
	var seen models.Principal
	h := m.Auth(RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromCtx(r.Context())
	})))

	call := func(token string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			r.Header.Set("Authorization", token)
		}
		return serve(h, r).Code
	}

	require.Equal(t, http.StatusUnauthorized, call(""))
	require.Equal(t, http.StatusUnauthorized, call("Basic abc"))
	require.Equal(t, http.StatusUnauthorized, call("Bearer dev-u1"))

	user, err := tm.GeneratePair("u1", models.RoleUser)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, call("Bearer "+user.AccessToken))
	require.Equal(t, http.StatusUnauthorized, call("Bearer "+user.RefreshToken))

	admin, err := tm.GeneratePair("u2", models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, call("bearer "+admin.AccessToken))
	require.Equal(t, models.Principal{UserID: "u2", Role: models.RoleAdmin}, seen)
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	h := RequireRole(models.RoleAdmin)(ok)
	require.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestRequireRoleAnyOf(t *testing.T) {
	h := RequireRole(models.RoleUser, models.RoleAdmin)(ok)
	for _, role := range []string{models.RoleUser, models.RoleAdmin} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(WithUser(r.Context(), models.Principal{UserID: "u1", Role: role}))
		require.Equal(t, http.StatusOK, serve(h, r).Code, role)
	}

	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r = r.WithContext(WithUser(r.Context(), models.Principal{UserID: "u1", Role: "guest"}))
	rec := serve(h, r)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"forbidden"`)
}

func TestRecover(t *testing.T) {
	before := testutil.ToFloat64(metrics.HandlerPanics)
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal_error")
	require.Equal(t, before+1, testutil.ToFloat64(metrics.HandlerPanics))
}

func TestRecoverLetsAbortHandlerThrough(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) }))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

// samples returns how many requests the latency histogram saw for the labels.
func samples(t *testing.T, method, route, status string) uint64 {
	t.Helper()
	var m dto.Metric
	obs := metrics.RequestLatency.WithLabelValues(method, route, status)
	require.NoError(t, obs.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestHTTPMetricsLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	var inFlight float64
	r.Get("/exchanges/{id}", func(w http.ResponseWriter, r *http.Request) {
		inFlight = testutil.ToFloat64(metrics.RequestsInFlight)
		w.WriteHeader(http.StatusConflict)
		w.WriteHeader(http.StatusOK) // a second WriteHeader must not relabel
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	base := testutil.ToFloat64(metrics.RequestsInFlight)
	matched := samples(t, http.MethodGet, "/exchanges/{id}", "409")
	unmatched := samples(t, http.MethodGet, "unmatched", "404")
	panicked := samples(t, http.MethodGet, "/boom", "500")

	serve(r, httptest.NewRequest(http.MethodGet, "/exchanges/abc", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/exchanges/def", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Panics(t, func() { serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil)) })

	require.Equal(t, matched+2, samples(t, http.MethodGet, "/exchanges/{id}", "409"))
	require.Equal(t, unmatched+1, samples(t, http.MethodGet, "unmatched", "404"))
	require.Equal(t, panicked+1, samples(t, http.MethodGet, "/boom", "500"))
	require.Equal(t, base+1, inFlight)
	require.Equal(t, base, testutil.ToFloat64(metrics.RequestsInFlight))
}

func TestRequestID(t *testing.T) {
	var inCtx string
	h := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inCtx = RequestIDFrom(r.Context())
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, inCtx)
	require.Equal(t, inCtx, rec.Header().Get("X-Request-Id"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "trace-123")
	rec = serve(h, r)
	require.Equal(t, "trace-123", inCtx)
	require.Equal(t, "trace-123", rec.Header().Get("X-Request-Id"))
}
