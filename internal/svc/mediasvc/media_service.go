package mediasvc

import (
	"context"

	"github.com/mkrupp/eventhub/internal/domain"
)

// MediaService defines the interface for managing objects stored in buckets.
// Objects are addressed by domain.ObjectID(bucket, path); identical content
// stored at several locations is kept once.
type MediaService interface {
	// Lock acquires a shared lock for the specified media.
	// Returns a function that must be called to release the lock, and any error encountered.
	// The returned function must be called in a deferred statement to ensure the lock is released.
	Lock(ctx context.Context, mediaID domain.MediaID) (func(), error)

	// Store persists the given media at its bucket and path. An occupied
	// location is replaced when upsert is set and the caller owns the object,
	// otherwise domain.ErrMediaAlreadyExists is returned. When the replaced
	// content is no longer referenced anywhere its data ID is returned.
	Store(ctx context.Context, media domain.Media, upsert bool) (domain.BlobID, error)

	// Delete removes the media with the specified ID. Only the owner may delete.
	// Returns whether the content was pruned because nothing else references it,
	// the ID of the content, and any error encountered during the operation.
	Delete(ctx context.Context, mediaID domain.MediaID) (bool, domain.BlobID, error)

	// Fetch retrieves the media with the specified ID. Buckets are public:
	// anyone may fetch.
	Fetch(ctx context.Context, mediaID domain.MediaID) (domain.Media, error)

	// MaxSize returns the maximum allowed file size for uploaded media in bytes.
	MaxSize() int64
}
