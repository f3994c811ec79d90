package context_test

import (
	"context"
	"testing"

	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
)

func TestContextValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, ok := context_.TraceIDFromContext(ctx); ok {
		t.Error("expected no trace ID in empty context")
	}

	if _, ok := context_.UserIDFromContext(ctx); ok {
		t.Error("expected no user in empty context")
	}

	ctx = context_.WithTraceID(ctx, "trace-1")
	ctx = context_.WithTabID(ctx, "tab-1")
	ctx = context_.WithUser(ctx, domain.User{ID: "user-1", Role: domain.RoleAdmin}) //nolint:exhaustruct

	if got, _ := context_.TraceIDFromContext(ctx); got != "trace-1" {
		t.Errorf("TraceIDFromContext() = %q, want %q", got, "trace-1")
	}

	if got, _ := context_.TabIDFromContext(ctx); got != "tab-1" {
		t.Errorf("TabIDFromContext() = %q, want %q", got, "tab-1")
	}

	if got, _ := context_.UserIDFromContext(ctx); got != "user-1" {
		t.Errorf("UserIDFromContext() = %q, want %q", got, "user-1")
	}

	if user, _ := context_.UserFromContext(ctx); !user.IsAdmin() {
		t.Error("expected admin user")
	}
}
