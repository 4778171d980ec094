package utils

const ellipsis = "..."

// Truncate shortens s to at most maxLen characters and appends "..." when it
// cuts. Lengths count runes, so a multi-byte character is never split.
func Truncate(s string, maxLen int) string {
	maxLen = max(maxLen, 0)

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + ellipsis
}
