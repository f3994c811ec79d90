package domain

import "errors"

var (
	// ErrNoMediaID is returned when an object location is required but not provided.
	ErrNoMediaID = errors.New("no media ID")
	// ErrMediaNotFound is returned when no object is stored at a location.
	ErrMediaNotFound = errors.New("media not found")
	// ErrUnknownBucket is returned for uploads to a bucket that does not exist.
	ErrUnknownBucket = errors.New("unknown bucket")
	// ErrMediaAlreadyExists is returned when uploading to an occupied location without upsert.
	ErrMediaAlreadyExists = errors.New("media already exists")
)

// MediaID identifies a stored object. It shares the blob ID space so metadata
// can be kept in a blob repository.
type MediaID = BlobID

// Storage buckets.
const (
	BucketProfileImages = "profile-images"
	BucketEventBanners  = "event-banners"
	BucketEventImages   = "event-images"
)

// Buckets lists every bucket accepting uploads.
//
//nolint:gochecknoglobals
var Buckets = []string{BucketProfileImages, BucketEventBanners, BucketEventImages}

// UploadResponse is returned by the storage API after an upload.
type UploadResponse struct {
	Bucket    string  `json:"bucket"`
	Path      string  `json:"path"`
	ID        MediaID `json:"id"`
	PublicURL string  `json:"publicUrl"`
}
