// Package ranker computes BM25-style relevance scores. The formula uses the
// raw field length in the length-normalisation term rather than dividing by
// the corpus average field length, matching the engine's ranking contract.
package ranker

import (
	"math"

	"github.com/blackroad/searchcore/internal/engine/tokenizer"
	"github.com/blackroad/searchcore/internal/engine/value"
)

const (
	k1 = 1.5
	b  = 0.75
)

var fieldWeights = map[string]float64{
	"title":       3.0,
	"description": 2.0,
	"body":        1.0,
}

// FieldWeight returns the fixed per-field boost, defaulting to 1.0.
func FieldWeight(field string) float64 {
	if w, ok := fieldWeights[field]; ok {
		return w
	}
	return 1.0
}

// Score computes the BM25 score of one document for the given query term
// sequence. Repeated query terms re-apply their full contribution. docFreq
// reports the number of distinct documents with a posting for a term;
// totalDocs is the index's maintained counter, substituting 1 when zero.
// idf may be negative when docFreq exceeds totalDocs.
func Score(queryTerms []string, doc value.Document, primaryKey string, totalDocs int, docFreq func(term string) int) float64 {
	score := 0.0
	n := totalDocs
	if n == 0 {
		n = 1
	}
	for _, term := range queryTerms {
		df := docFreq(term)
		idf := math.Log(float64(n) / math.Max(1, float64(df)))

		for _, f := range doc.Fields() {
			if f.Name == primaryKey {
				continue
			}
			fieldTerms := tokenizer.Tokenize(f.Value.String())
			tf := 0
			for _, t := range fieldTerms {
				if t == term {
					tf++
				}
			}
			if tf == 0 {
				continue
			}
			fieldLen := float64(len(fieldTerms))
			tfF := float64(tf)
			bm25 := (k1 + 1) * tfF / (tfF + k1*(1-b+b*fieldLen))
			score += FieldWeight(f.Name) * idf * bm25
		}
	}
	return score
}
