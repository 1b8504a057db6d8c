// Package facet computes value-distribution counts over document sets.
package facet

import "github.com/blackroad/searchcore/internal/engine/value"

// Compute returns, for each requested facet field, the distribution of
// stringified field values to document counts across the given documents.
// Every requested field appears in the result, even with no occurrences.
// Faceting is global: callers pass the full document set of the index, not
// the query-matched subset.
func Compute(docs map[string]value.Document, facetFields []string) map[string]map[string]int {
	result := make(map[string]map[string]int, len(facetFields))
	for _, field := range facetFields {
		counts := make(map[string]int)
		for _, doc := range docs {
			if v, ok := doc.Get(field); ok {
				counts[v.String()]++
			}
		}
		result[field] = counts
	}
	return result
}
