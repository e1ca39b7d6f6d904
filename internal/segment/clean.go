package segment

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	placeholderMarker = regexp.MustCompile(`(?i)<!--\s*image\s*-->`)
	headingMarker     = regexp.MustCompile(`(?m)^#+\s*`)
)

// Clean normalizes a chunk for embedding. It removes image placeholders and markdown heading
// markers, keeps only letters, digits, whitespace and . , ! ?, and trims the result.
// The boolean is false when nothing meaningful remains and the chunk should be discarded.
// Clean is idempotent.
func Clean(text string) (string, bool) {
	text = placeholderMarker.ReplaceAllString(text, "")
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	text = headingMarker.ReplaceAllString(text, "")
	text = strings.Map(func(r rune) rune {
		if keepRune(r) {
			return r
		}
		return -1
	}, text)
	text = strings.TrimSpace(text)
	return text, text != ""
}

func keepRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
		return true
	case unicode.Is(unicode.Mn, r):
		// combining accents of decomposed letters
		return true
	}
	switch r {
	case '.', ',', '!', '?':
		return true
	}
	return false
}
