package userctx

import (
	"context"

	"github.com/almaz-dev/eduspin/internal/models"
)

// Unexported key type keeps the value collision free
type ctxKey struct{}

// New returns a child context carrying the authenticated user
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext extracts the user stored by New
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	return u, ok
}
