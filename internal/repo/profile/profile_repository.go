package profile

import (
	"context"

	"github.com/mkrupp/eventhub/internal/domain"
)

// Repository defines the interface for profile persistence. Display names are
// unique by their normalized form.
type Repository interface {
	// CreateProfile inserts the profile row of a confirmed account.
	// Returns domain.ErrProfileAlreadyExists if the account already has one and
	// domain.ErrProfileNameTaken if another profile uses the name.
	CreateProfile(ctx context.Context, profile domain.Profile) error

	// GetProfile returns the non-deleted profile of an account or domain.ErrProfileNotFound.
	GetProfile(ctx context.Context, id string) (domain.Profile, error)

	// GetProfileByName returns the non-deleted profile using a display name.
	GetProfileByName(ctx context.Context, name string) (domain.Profile, error)

	// NameAvailable reports whether no profile uses the display name.
	NameAvailable(ctx context.Context, name string) (bool, error)

	// UpdateProfile replaces the editable fields of a profile.
	UpdateProfile(ctx context.Context, profile domain.Profile) error

	// DeleteProfile soft-deletes a profile and releases its display name.
	DeleteProfile(ctx context.Context, id string) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func(ctx context.Context) (Repository, error)
