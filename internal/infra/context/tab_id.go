package context

import (
	"context"
)

const contextKeyTabID = contextKey("tabID")

// TabIDFromContext extracts the ID of the client instance from the context.
func TabIDFromContext(ctx context.Context) (string, bool) {
	tabID, ok := ctx.Value(contextKeyTabID).(string)

	return tabID, ok
}

// WithTabID returns a context tagged with the ID of a client instance.
func WithTabID(ctx context.Context, tabID string) context.Context {
	return context.WithValue(ctx, contextKeyTabID, tabID)
}
