package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Normalize prepares label text for matching: Unicode case folding, every
// rune that is not a letter or digit becomes a space, runs of whitespace
// collapse to one. Additive codes like "e322" survive intact because they
// are alphanumeric.
func Normalize(text string) string {
	folded := cases.Fold().String(text)
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(mapped), " ")
}

// Tokens returns the normalized text split into tokens.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}
