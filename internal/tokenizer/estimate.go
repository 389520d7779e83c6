package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// Names of the built-in estimators.
const (
	Whitespace = "whitespace"
	Chars4     = "chars4"
)

// CountWords counts whitespace-delimited words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// EstimateChars approximates tokens as runes/4, rounded to nearest.
func EstimateChars(text string) int {
	return (utf8.RuneCountInString(text) + 2) / 4
}
