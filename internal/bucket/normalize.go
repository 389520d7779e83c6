package bucket

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize is an opt-in KeyFunc that folds formatting differences: NFC,
// lowercase, punctuation replaced by spaces, runs of whitespace collapsed.
func Normalize(prompt string) string {
	s := strings.ToLower(norm.NFC.String(prompt))
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Preview truncates s to at most n runes, adding "..." when cut.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
