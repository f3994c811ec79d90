package domain

// BlobID names a stored blob. Object data is keyed by its content hash,
// derived blobs such as resized images append a suffix to that hash.
type BlobID string

func (id BlobID) String() string {
	return string(id)
}

// Blob is the raw content behind an object, its metadata or its back
// references.
type Blob struct {
	ID   BlobID
	Body []byte
}

// NewBlob creates a new Blob.
func NewBlob(id BlobID, body []byte) *Blob {
	return &Blob{ID: id, Body: body}
}

// Size returns the length of the content in bytes.
func (blob *Blob) Size() int64 {
	return int64(len(blob.Body))
}

// Bytes returns the content.
func (blob *Blob) Bytes() []byte {
	return blob.Body
}
