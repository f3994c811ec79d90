// Package context carries request-scoped identifiers through context.Context.
// It is imported as context_ next to the standard library package.
package context

type contextKey string
