package validators

import (
	"strings"
	"unicode"
)

// CleanReason normalizes free text that ends up on receipts and audit entries:
// control characters are dropped, whitespace runs collapse to one space, and the
// result is cut to maxRunes without splitting a character.
func CleanReason(input string, maxRunes int) string {
	printable := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)
	cleaned := strings.Join(strings.Fields(printable), " ")
	if maxRunes <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxRunes {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxRunes]))
}
