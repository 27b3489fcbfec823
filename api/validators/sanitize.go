package validators

import "strings"

// SanitizeString trims surrounding whitespace and caps the result at maxLen
// runes. Truncation counts runes, not bytes, so a multibyte character at the
// boundary is dropped whole instead of split.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxLen {
		return trimmed
	}
	return string(runes[:maxLen])
}
