package domain

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/mkrupp/eventhub/internal/util/encoding"
)

// MediaMeta describes an object stored in a bucket.
//
//nolint:recvcheck
type MediaMeta struct {
	Bucket   string  `json:"bucket"`   // Bucket name
	Path     string  `json:"path"`     // Object path inside the bucket
	ID       MediaID `json:"id"`       // Derived from bucket and path
	Hash     string  `json:"hash"`     // Content hash (Crockford Base32)
	Size     int64   `json:"size"`     // Size in bytes
	Owner    string  `json:"owner"`    // Account ID of the uploader
	MIMEType string  `json:"mimeType"` // MIME type
}

// NewMediaMetaFromBlob creates MediaMeta from a JSON-encoded blob.
// Returns an error if the blob contains invalid JSON.
func NewMediaMetaFromBlob(blob *Blob) (MediaMeta, error) {
	var meta MediaMeta
	if err := json.Unmarshal(blob.Bytes(), &meta); err != nil {
		return MediaMeta{}, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return meta, nil
}

// ObjectID returns the identifier of the object stored at bucket/path.
// Uploading to the same location again replaces the object under the same ID.
func ObjectID(bucket, path string) MediaID {
	sum := sha256.Sum256([]byte(bucket + "/" + path))

	return MediaID(encoding.EncodeCrockfordB32LC(sum[:]))
}

// update recalculates hash, size and ID from the content and location.
func (meta *MediaMeta) update(data []byte) {
	sum := sha256.Sum256(data)
	meta.Hash = encoding.EncodeCrockfordB32LC(sum[:])
	meta.Size = int64(len(data))
	meta.ID = ObjectID(meta.Bucket, meta.Path)
}

// AsBlob converts the metadata to a JSON-encoded blob using the ID as the blob ID.
// Returns an error if JSON marshaling fails.
func (meta MediaMeta) AsBlob() (*Blob, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return NewBlob(meta.ID, data), nil
}
