package normalization

import (
	"strings"
)

// ParseInputString lowercases and trims identifier-like input (emails, mode flags).
func ParseInputString(input string) string {
	normalized := strings.ToLower(strings.TrimSpace(input))
	return normalized
}

// ParseContentString trims free text without touching its case. Note content and
// suggestion text keep whatever casing the user or the model produced.
func ParseContentString(input string) string {
	return strings.TrimSpace(input)
}
