// Package directive splits Cache-Control and Pragma header values into
// directive tokens.
package directive

import (
	"strings"
)

// Tokenize splits each value on runs of ASCII whitespace and trims a single
// trailing comma from every token. Empty tokens are dropped.
func Tokenize(values []string) []string {
	var tokens []string
	for _, v := range values {
		for _, tok := range strings.Fields(v) {
			tok = strings.TrimSuffix(tok, ",")
			if tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

// TokenizeWithCommas splits on whitespace and commas alike, so
// "max-age=60,private" yields two tokens.
func TokenizeWithCommas(values []string) []string {
	var tokens []string
	for _, v := range values {
		for _, tok := range strings.FieldsFunc(v, isSeparator) {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func isSeparator(r rune) bool {
	return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
}

// Is reports whether tok is exactly the named directive, ignoring case.
func Is(tok, name string) bool {
	return strings.EqualFold(tok, name)
}

// HasPrefix reports whether tok starts with prefix, ignoring case.
func HasPrefix(tok, prefix string) bool {
	return len(tok) >= len(prefix) && strings.EqualFold(tok[:len(prefix)], prefix)
}

// Contains reports whether any token equals name, ignoring case.
func Contains(tokens []string, name string) bool {
	for _, tok := range tokens {
		if Is(tok, name) {
			return true
		}
	}
	return false
}
