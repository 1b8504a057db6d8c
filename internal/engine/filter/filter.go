// Package filter evaluates exact-match predicates over raw documents.
// Filters are expressed as an ordered field mapping: a list value means set
// membership, any other value means strict equality. Equality is
// type-sensitive throughout; a text "1" never matches the number 1.
package filter

import "github.com/blackroad/searchcore/internal/engine/value"

// Matches reports whether the document satisfies every filter pair (logical
// AND). A filter on a field the document lacks fails the match.
func Matches(doc value.Document, filters value.Document) bool {
	for _, f := range filters.Fields() {
		got, ok := doc.Get(f.Name)
		if !ok {
			return false
		}
		if f.Value.Kind() == value.KindList {
			if !containsEqual(f.Value.Elems(), got) {
				return false
			}
			continue
		}
		if !got.Equal(f.Value) {
			return false
		}
	}
	return true
}

func containsEqual(allowed []value.Value, got value.Value) bool {
	for _, v := range allowed {
		if got.Equal(v) {
			return true
		}
	}
	return false
}
