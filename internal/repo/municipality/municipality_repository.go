package municipality

import (
	"context"

	"github.com/mkrupp/eventhub/internal/domain"
)

// Repository provides read access to the municipality reference data.
type Repository interface {
	// Search returns up to limit municipalities whose name contains query,
	// ignoring case, ordered by name.
	Search(ctx context.Context, query string, limit int) ([]domain.Municipality, error)

	// Get returns the municipality with the given IBGE code or domain.ErrMunicipalityNotFound.
	Get(ctx context.Context, code int) (domain.Municipality, error)

	// States returns every federative unit ordered by UF.
	States(ctx context.Context) ([]domain.State, error)

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func(ctx context.Context) (Repository, error)
