package classifiers

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sanitize prepares raw message content for pattern matching. NFKC
// normalization folds mathematical/fullwidth/circled Unicode variants back
// to ASCII so stylized text cannot slip past the lexical classifiers, and
// control bytes are stripped so malformed input cannot corrupt matching.
// Newlines and tabs become spaces; runs of whitespace collapse to one.
func Sanitize(text string) string {
	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t' || r == '\r' || unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
			// drop
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// Truncate returns at most maxRunes runes of text without splitting a
// multi-byte character.
func Truncate(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
