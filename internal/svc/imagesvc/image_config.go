package imagesvc

type ImageConfig struct {
	// Interpolator is one of nearestneighbor, approxbilinear, bilinear or catmullrom.
	Interpolator string `env:"INTERPOLATOR" default:"catmullrom"`

	// MaxWidth bounds the width Fetch scales to.
	MaxWidth int `env:"MAX_WIDTH" default:"2048"`
}
