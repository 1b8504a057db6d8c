// Package tokenizer provides text normalisation for the search core. It
// lower-cases input, extracts maximal runs of letters, digits, and
// underscores, and removes short tokens and stop-words. The same function is
// applied to indexed field values and query strings, which guarantees
// symmetric matching.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {},
}

// Tokenize breaks text into an ordered slice of normalised terms. Tokens of
// length two or less and stop-words are dropped; a term's slice index is its
// token position.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		// Length is counted in runes so multibyte tokens filter the
		// same as ASCII ones.
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}
