package domain

import "errors"

var (
	ErrImageTypeNotSupported = errors.New("image type not supported")
	ErrImageTypeMismatch     = errors.New("image ext does not match content type")
	ErrImageTooLarge         = errors.New("image too large")
	ErrTooManyImages         = errors.New("too many images")
	ErrInvalidImageWidth     = errors.New("invalid image width")
)

// MaxEventImages is the maximum number of gallery images of an event.
const MaxEventImages = 10
