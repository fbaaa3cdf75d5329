package storage

import (
	"strings"
	"unicode"
)

// SanitizeString normalizes whitespace (including NO-BREAK SPACE) and drops
// control and symbol characters that break chat rendering.
func SanitizeString(s string) string {
	result := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			result = append(result, ' ')
		case r >= 32 && r <= 126:
			result = append(result, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			result = append(result, r)
		case unicode.IsPunct(r):
			result = append(result, r)
		}
	}
	return strings.Join(strings.Fields(string(result)), " ")
}
