// Package validation guards the web shell against query text no city name
// could contain. The widget itself accepts any text; these checks run only
// where input arrives over HTTP.
package validation

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxQueryRunes bounds the query text accepted over HTTP.
const DefaultMaxQueryRunes = 200

// ErrQueryTooLong is returned when the query exceeds the rune limit.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when the query contains control characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ErrQueryInvalidUTF8 is returned when the query is not valid UTF-8.
var ErrQueryInvalidUTF8 = errors.New("query is not valid UTF-8")

// ValidateQuery checks raw input text without altering it. Empty and
// whitespace-only text is valid; submitting it is a no-op downstream.
// maxRunes <= 0 disables the length check.
func ValidateQuery(input string, maxRunes int) error {
	if !utf8.ValidString(input) {
		return ErrQueryInvalidUTF8
	}
	if maxRunes > 0 && utf8.RuneCountInString(input) > maxRunes {
		return ErrQueryTooLong
	}
	for _, c := range input {
		if isControl(c) {
			return ErrQueryInvalidChars
		}
	}
	return nil
}

// isControl reports control characters other than ordinary whitespace, which
// trimming at submit time already handles.
func isControl(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return false
	}
	return unicode.IsControl(r)
}
