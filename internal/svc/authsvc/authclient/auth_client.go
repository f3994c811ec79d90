package authclient

import (
	"context"

	"github.com/mkrupp/eventhub/internal/domain"
)

// AuthClient defines the interface for validating access tokens.
type AuthClient interface {
	// Validate returns the user the token was issued to. It returns
	// domain.ErrInvalidAuthToken for unknown, malformed or expired tokens.
	Validate(ctx context.Context, token string) (domain.User, error)
}
