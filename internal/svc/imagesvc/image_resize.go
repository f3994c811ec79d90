package imagesvc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

var (
	// ErrUnknownInterpolator is returned for an Interpolator name without a scaler.
	ErrUnknownInterpolator = errors.New("unknown interpolator")

	errEmptyImage = errors.New("empty image")
)

// scaler resizes encoded images to a target width.
type scaler struct {
	interpolator draw.Interpolator
}

func newScaler(name string) (scaler, error) {
	var interpolator draw.Interpolator

	switch strings.ToLower(name) {
	case "nearestneighbor":
		interpolator = draw.NearestNeighbor
	case "approxbilinear":
		interpolator = draw.ApproxBiLinear
	case "bilinear":
		interpolator = draw.BiLinear
	case "catmullrom":
		interpolator = draw.CatmullRom
	default:
		return scaler{}, fmt.Errorf("%w: %q", ErrUnknownInterpolator, name)
	}

	return scaler{interpolator: interpolator}, nil
}

// scale decodes data of type mimeType and re-encodes it at width pixels,
// keeping the aspect ratio. It returns the encoded bytes and their type.
func (s scaler) scale(data []byte, mimeType string, width int) ([]byte, string, error) {
	decode, err := getDecoderByType(mimeType)
	if err != nil {
		return nil, "", err
	}

	src, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 {
		return nil, "", errEmptyImage
	}

	height := max(1, bounds.Dy()*width/bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	s.interpolator.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	encode, resizedType := getEncoderByType(mimeType)

	var buf bytes.Buffer
	if err := encode(&buf, dst); err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", resizedType, err)
	}

	return buf.Bytes(), resizedType, nil
}
