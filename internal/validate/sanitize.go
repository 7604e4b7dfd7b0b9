package validate

import (
	"strings"
	"unicode"
)

// Sanitize removes control characters and angle brackets, trims surrounding
// whitespace and truncates to max runes.
func Sanitize(s string, max int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		if unicode.IsControl(r) && r != ' ' {
			if r == '\n' || r == '\t' {
				return ' '
			}
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimSpace(cleaned)
	if max <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) > max {
		cleaned = strings.TrimSpace(string(runes[:max]))
	}
	return cleaned
}
