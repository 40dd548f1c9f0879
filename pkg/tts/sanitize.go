package tts

import "strings"

// Sanitize keeps only ASCII letters, digits, space, tab and the
// punctuation . , ? ! ' " and drops everything else. Backends reject or
// mispronounce arbitrary symbols. Sanitize is idempotent.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if allowed(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case ' ', '\t', '.', ',', '?', '!', '\'', '"':
		return true
	}
	return false
}
