// Package postings maintains the in-memory inverted index of one document
// collection: term -> doc id -> field -> token positions, with reverse
// tracking per document so a write can fully regenerate its postings.
package postings

import "sort"

// Posting is one derived fact: a term occurs in a field of a document at the
// recorded token positions.
type Posting struct {
	Term      string
	DocID     string
	Field     string
	Positions []int
}

// Index holds the postings of a single search index.
type Index struct {
	// term -> docID -> field -> positions
	terms map[string]map[string]map[string][]int
	// docID -> set of terms, for purge on rewrite and delete
	docTerms map[string]map[string]struct{}
}

// NewIndex creates an empty postings index.
func NewIndex() *Index {
	return &Index{
		terms:    make(map[string]map[string]map[string][]int),
		docTerms: make(map[string]map[string]struct{}),
	}
}

// Add records a posting, overwriting any previous positions for the same
// (term, doc, field) key.
func (x *Index) Add(term, docID, field string, positions []int) {
	byDoc, ok := x.terms[term]
	if !ok {
		byDoc = make(map[string]map[string][]int)
		x.terms[term] = byDoc
	}
	byField, ok := byDoc[docID]
	if !ok {
		byField = make(map[string][]int)
		byDoc[docID] = byField
	}
	byField[field] = append([]int(nil), positions...)

	terms, ok := x.docTerms[docID]
	if !ok {
		terms = make(map[string]struct{})
		x.docTerms[docID] = terms
	}
	terms[term] = struct{}{}
}

// RemoveDocument purges every posting of the given document across all terms
// and fields.
func (x *Index) RemoveDocument(docID string) {
	for term := range x.docTerms[docID] {
		byDoc := x.terms[term]
		delete(byDoc, docID)
		if len(byDoc) == 0 {
			delete(x.terms, term)
		}
	}
	delete(x.docTerms, docID)
}

// DocFreq returns the number of distinct documents with at least one posting
// for the term, in any field.
func (x *Index) DocFreq(term string) int {
	return len(x.terms[term])
}

// Positions returns the recorded positions for a (term, doc, field) key, or
// nil if absent.
func (x *Index) Positions(term, docID, field string) []int {
	return x.terms[term][docID][field]
}

// HasDocument reports whether the document has any posting.
func (x *Index) HasDocument(docID string) bool {
	return len(x.docTerms[docID]) > 0
}

// ForDocument returns every posting of the given document, sorted by term
// then field for deterministic persistence.
func (x *Index) ForDocument(docID string) []Posting {
	out := make([]Posting, 0, len(x.docTerms[docID]))
	for term := range x.docTerms[docID] {
		for field, positions := range x.terms[term][docID] {
			out = append(out, Posting{
				Term:      term,
				DocID:     docID,
				Field:     field,
				Positions: append([]int(nil), positions...),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Term != out[j].Term {
			return out[i].Term < out[j].Term
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// TermCount returns the number of distinct terms in the index.
func (x *Index) TermCount() int { return len(x.terms) }
