package imagesvc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/mkrupp/eventhub/internal/domain"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeTIFF = "image/tiff"
	MIMETypeWebP = "image/webp"
)

// signature is a magic byte sequence expected at offset.
type signature struct {
	offset int
	magic  string
}

//nolint:gochecknoglobals
var (
	imageExtTypes = map[string]string{
		".jpg":  MIMETypeJPEG,
		".jpeg": MIMETypeJPEG,
		".png":  MIMETypePNG,
		".tiff": MIMETypeTIFF,
		".tif":  MIMETypeTIFF,
		".webp": MIMETypeWebP,
	}

	// every signature of one alternative must match
	imageSignatures = map[string][][]signature{
		MIMETypeJPEG: {{{0, "\xFF\xD8"}}},
		MIMETypePNG:  {{{0, "\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"}}},
		MIMETypeTIFF: {{{0, "\x49\x49\x2A\x00"}}, {{0, "\x4D\x4D\x00\x2A"}}},
		MIMETypeWebP: {{{0, "RIFF"}, {8, "WEBP"}}},
	}

	imageDecoders = map[string]func(io.Reader) (image.Image, error){
		MIMETypeJPEG: jpeg.Decode,
		MIMETypeTIFF: tiff.Decode,
		MIMETypePNG:  png.Decode,
		MIMETypeWebP: webp.Decode,
	}

	imageEncoders = map[string]func(io.Writer, image.Image) error{
		MIMETypeJPEG: func(w io.Writer, i image.Image) error { return jpeg.Encode(w, i, nil) },
		MIMETypeTIFF: func(w io.Writer, i image.Image) error { return tiff.Encode(w, i, nil) },
		MIMETypePNG:  png.Encode,
	}
)

// matchesType reports whether data starts like an image of mimeType.
func matchesType(data []byte, mimeType string) bool {
	for _, alternative := range imageSignatures[mimeType] {
		matched := true

		for _, sig := range alternative {
			end := sig.offset + len(sig.magic)
			if len(data) < end || !bytes.Equal(data[sig.offset:end], []byte(sig.magic)) {
				matched = false

				break
			}
		}

		if matched {
			return true
		}
	}

	return false
}

func getDecoderByType(mimeType string) (func(io.Reader) (image.Image, error), error) {
	decoder, ok := imageDecoders[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, mimeType)
	}

	return decoder, nil
}

// getEncoderByType returns the encoder for mimeType and the type it produces.
// Types without an encoder are re-encoded as PNG.
func getEncoderByType(mimeType string) (func(io.Writer, image.Image) error, string) {
	if encoder, ok := imageEncoders[mimeType]; ok {
		return encoder, mimeType
	}

	return imageEncoders[MIMETypePNG], MIMETypePNG
}
