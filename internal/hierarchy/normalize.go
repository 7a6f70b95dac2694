package hierarchy

import (
	"strings"
	"unicode"
)

// stripped lists the punctuation removed from labels before they become ids.
// Pipes are dropped outright rather than rewritten to hyphens.
const stripped = "`~!@#$%^&*()|+=?;:'\",.<>{}[]\\/"

// NormalizeID maps a free-text label to its canonical id token: punctuation
// and whitespace are removed and the rest is lower-cased. It never fails and
// NormalizeID(NormalizeID(s)) == NormalizeID(s).
func NormalizeID(label string) string {
	var sb strings.Builder
	sb.Grow(len(label))

	for _, r := range label {
		if unicode.IsSpace(r) || strings.ContainsRune(stripped, r) {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}

	return sb.String()
}

// DisplayName returns the label as shown to buyers.
func DisplayName(label string) string {
	return strings.TrimSpace(label)
}
