package context

import (
	"context"

	"github.com/mkrupp/eventhub/internal/domain"
)

const contextKeyUser = contextKey("user")

// UserFromContext extracts the authenticated user from the context.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(contextKeyUser).(domain.User)

	return user, ok
}

// UserIDFromContext returns the ID of the authenticated user, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	user, ok := UserFromContext(ctx)
	if !ok || user.ID == "" {
		return "", false
	}

	return user.ID, true
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}
