package imagesvc

import (
	"context"

	"github.com/mkrupp/eventhub/internal/domain"
)

// ImageService stores avatars and event galleries on top of the media store
// and serves them scaled to a requested width.
type ImageService interface {
	// Lock takes a shared lock on imageID and returns its release.
	Lock(ctx context.Context, imageID domain.MediaID) (func(), error)

	// Store saves image at its bucket location. An occupied location is
	// replaced only with upsert and only by the same owner.
	Store(ctx context.Context, image domain.Media, upsert bool) error

	Delete(ctx context.Context, imageID domain.MediaID) error

	// Fetch returns the image scaled to width, or unscaled for width 0.
	Fetch(ctx context.Context, imageID domain.MediaID, width int) (domain.Media, error)

	MaxSize() int64

	// CheckUploadConstraints validates an upload by size and file extension
	// and, unless image is nil, its content. It returns the detected type.
	CheckUploadConstraints(filename string, size int64, image []byte) (string, error)
}
