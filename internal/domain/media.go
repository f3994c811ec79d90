package domain

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var ErrMediaTooLarge = errors.New("media too large")

// Media is a stored object: the uploaded bytes and the metadata describing
// where they live in which bucket.
type Media struct {
	data []byte
	meta MediaMeta
}

// NewMedia creates a new Media. Hash, size and ID of meta are recomputed
// from data and the object location.
func NewMedia(data []byte, meta MediaMeta) Media {
	meta.update(data)

	return Media{data: data, meta: meta}
}

func (m Media) ID() MediaID      { return m.meta.ID }
func (m Media) Hash() string     { return m.meta.Hash }
func (m Media) Meta() MediaMeta  { return m.meta }
func (m Media) MIMEType() string { return m.meta.MIMEType }
func (m Media) Owner() string    { return m.meta.Owner }
func (m Media) Bytes() []byte    { return m.data }
func (m Media) Size() int64      { return int64(len(m.data)) }
func (m Media) Read() io.Reader  { return bytes.NewReader(m.data) }

// WriteTo writes the object content to w.
func (m Media) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.data)
	if err != nil {
		return int64(n), fmt.Errorf("write: %w", err)
	}

	return int64(n), nil
}

// AsBlob returns the content keyed by its hash. Objects with equal content
// share one data blob.
func (m Media) AsBlob() *Blob {
	return NewBlob(BlobID(m.meta.Hash), m.data)
}
