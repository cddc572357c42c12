// Package utils provides shared helpers for logging and text display.
package utils

import "strings"

// Truncate returns s shortened to at most maxLen runes, with "..." appended if
// truncated. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Preview flattens text to a single line for listings: runs of whitespace,
// including line breaks, become one space.
func Preview(text string, maxLen int) string {
	return Truncate(strings.Join(strings.Fields(text), " "), maxLen)
}
