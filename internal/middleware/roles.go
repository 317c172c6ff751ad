package middleware

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/baharkarakas/bookswap-backend/internal/api/httpx"
	"github.com/baharkarakas/bookswap-backend/internal/apperr"
)

// RequireRole admits principals holding one of roles. Auth must run first;
// a request without a principal is answered 401, a wrong role 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromCtx(r.Context())
			switch {
			case p.UserID == "":
				httpx.Fail(w, r, fmt.Errorf("%w: sign in first", apperr.ErrUnauthorized))
			case !slices.Contains(roles, p.Role):
				httpx.Fail(w, r, fmt.Errorf("%w: role %q cannot use %s", apperr.ErrForbidden, p.Role, r.URL.Path))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
