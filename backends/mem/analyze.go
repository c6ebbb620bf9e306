package mem

import (
	"strings"
	"unicode"
)

// tokenize lowercases the text and splits it on anything that is neither a
// letter nor a digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
