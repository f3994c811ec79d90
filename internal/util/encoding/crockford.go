// Package encoding provides the lower-case Crockford base32 form used for
// tokens that people copy from emails.
package encoding

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

var crockfordB32LC = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// transcription maps the letters Crockford's alphabet leaves out to the digits
// they are mistaken for.
var transcription = strings.NewReplacer("o", "0", "i", "1", "l", "1", " ", "", "-", "")

// EncodeCrockfordB32LC encodes input with the lower-case Crockford alphabet,
// without padding.
func EncodeCrockfordB32LC(input []byte) string {
	return crockfordB32LC.EncodeToString(input)
}

// NormalizeCrockfordB32LC undoes common transcription errors: case, spaces,
// hyphens and the letters o, i and l.
func NormalizeCrockfordB32LC(input string) string {
	return transcription.Replace(strings.ToLower(strings.TrimSpace(input)))
}

// NewToken returns n random bytes in Crockford form.
func NewToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return EncodeCrockfordB32LC(buf), nil
}
