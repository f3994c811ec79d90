// Package slug turns display names into URL path segments and back.
package slug

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//nolint:gochecknoglobals
var (
	disallowed = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Make returns the slug of s: accents are stripped, characters other than
// ASCII letters, digits, whitespace and hyphens are dropped and whitespace
// runs become a single hyphen. "São João del-Rei" becomes "sao-joao-del-rei".
func Make(s string) string {
	s = stripMarks(s)
	s = disallowed.ReplaceAllString(s, "")
	s = strings.ToLower(strings.TrimSpace(s))

	return whitespace.ReplaceAllString(s, "-")
}

// Read decodes a path segment produced for a display name: it is URL-decoded
// and underscores become spaces. Undecodable input is returned as is.
func Read(segment string) string {
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}

	return strings.ReplaceAll(segment, "_", " ")
}

// NormalizeName returns the key display names are compared by: trimmed,
// lower-cased, whitespace runs replaced by a single underscore.
func NormalizeName(name string) string {
	return whitespace.ReplaceAllString(Fold(name), "_")
}

// Fold returns s trimmed and lower-cased using Unicode case rules, so "SÃO"
// and "são" compare equal. Accents are kept.
func Fold(s string) string {
	// Casers are stateful and must not be shared between goroutines.
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}

	return out
}
