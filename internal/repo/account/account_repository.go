package account

import (
	"context"

	"github.com/mkrupp/eventhub/internal/domain"
)

// Repository defines the interface for account persistence.
type Repository interface {
	// CreateAccount adds a new account.
	// Returns domain.ErrAccountAlreadyExists if the email is already registered.
	CreateAccount(ctx context.Context, account domain.Account) error

	// GetAccountByID returns the account with the given ID or domain.ErrAccountNotFound.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail returns the account with the given email or domain.ErrAccountNotFound.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetAccountByConfirmationToken returns the account awaiting confirmation
	// with the given token or domain.ErrAccountNotFound.
	GetAccountByConfirmationToken(ctx context.Context, token string) (domain.Account, error)

	// SetConfirmationToken replaces the pending confirmation token of an account.
	SetConfirmationToken(ctx context.Context, id, token string, sentAt int64) error

	// ConfirmEmail marks the account's email as confirmed and clears its token.
	ConfirmEmail(ctx context.Context, id string, confirmedAt int64) error

	// SetRole replaces the account's role.
	SetRole(ctx context.Context, id, role string) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func(ctx context.Context) (Repository, error)
