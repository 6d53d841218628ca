package encoder

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Ascify applies compatibility decomposition and then drops every rune
// outside the ASCII range, so "ﬁancé" becomes "fiance".
func Ascify(value string) string {
	decomposed := norm.NFKD.String(value)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}
