package blob

import (
	"context"

	"github.com/mkrupp/eventhub/internal/domain"
)

// Repository stores opaque blobs by ID. Missing blobs are reported as
// domain.ErrMediaNotFound.
type Repository interface {
	// Lock takes a shared or exclusive lock on id and returns its release.
	Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error)

	Exists(ctx context.Context, id domain.BlobID) bool
	Store(ctx context.Context, blob *domain.Blob) error
	Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error)
	Delete(ctx context.Context, id domain.BlobID) error

	// DeleteAll removes the blobs named id followed by a suffix matching the
	// glob pattern, e.g. the resized copies "<hash>_*" of one content.
	DeleteAll(ctx context.Context, id domain.BlobID, pattern string) error
}

// RepositoryFactory opens the repository called name whose blobs carry the
// file extension ext.
type RepositoryFactory func(ctx context.Context, name, ext string) (Repository, error)
