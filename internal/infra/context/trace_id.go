package context

import (
	"context"
)

const contextKeyTraceID = contextKey("traceID")

// WithTraceID attaches the request trace ID. Clients forward it as
// X-Request-ID so client and server log lines share the ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, traceID)
}

func TraceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKeyTraceID).(string)

	return id, ok && id != ""
}
