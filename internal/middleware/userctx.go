package middleware

import (
	"context"

	"github.com/baharkarakas/bookswap-backend/internal/models"
)

type userKey struct{}

func WithUser(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, userKey{}, p)
}

// FromCtx returns the caller set by Auth, or the zero Principal.
func FromCtx(ctx context.Context) models.Principal {
	if v := ctx.Value(userKey{}); v != nil {
		if p, ok := v.(models.Principal); ok {
			return p
		}
	}
	return models.Principal{}
}
