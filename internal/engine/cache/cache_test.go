package cache

import (
	"testing"

	"github.com/blackroad/searchcore/internal/engine"
	"github.com/blackroad/searchcore/internal/engine/value"
)

func TestBuildKeyDeterministic(t *testing.T) {
	c := &QueryCache{}

	filters := value.NewDocument()
	filters.Set("genre", value.Text("sci-fi"))

	p := engine.SearchParams{
		Query:   "Dune",
		Filters: filters,
		Facets:  []string{"genre", "author"},
		Limit:   20,
	}
	k1 := c.buildKey("books", p)
	k2 := c.buildKey("books", p)
	if k1 != k2 {
		t.Errorf("same params produced different keys: %s vs %s", k1, k2)
	}
}

func TestBuildKeyNormalisesQueryAndFacetOrder(t *testing.T) {
	c := &QueryCache{}

	a := c.buildKey("books", engine.SearchParams{Query: "DUNE", Facets: []string{"genre", "author"}})
	b := c.buildKey("books", engine.SearchParams{Query: "dune", Facets: []string{"author", "genre"}})
	if a != b {
		t.Errorf("query case or facet order changed the key: %s vs %s", a, b)
	}
}

func TestBuildKeyDiscriminates(t *testing.T) {
	c := &QueryCache{}
	base := engine.SearchParams{Query: "dune", Limit: 20}

	variants := map[string]engine.SearchParams{
		"query":  {Query: "messiah", Limit: 20},
		"limit":  {Query: "dune", Limit: 10},
		"offset": {Query: "dune", Limit: 20, Offset: 20},
		"facets": {Query: "dune", Limit: 20, Facets: []string{"genre"}},
		"sort":   {Query: "dune", Limit: 20, Sort: []string{"year"}},
	}
	baseKey := c.buildKey("books", base)
	for name, p := range variants {
		if got := c.buildKey("books", p); got == baseKey {
			t.Errorf("changing %s did not change the cache key", name)
		}
	}
	if c.buildKey("movies", base) == baseKey {
		t.Error("different index uids must not share keys")
	}
}

func TestBuildKeyScopedByIndexPrefix(t *testing.T) {
	c := &QueryCache{}
	key := c.buildKey("books", engine.SearchParams{Query: "dune"})
	if want := "search:books:"; len(key) <= len(want) || key[:len(want)] != want {
		t.Errorf("key %q not scoped under %q", key, want)
	}
}

func TestStatsStartAtZero(t *testing.T) {
	c := &QueryCache{}
	hits, misses := c.Stats()
	if hits != 0 || misses != 0 {
		t.Errorf("fresh cache counters = %d/%d, want 0/0", hits, misses)
	}
}
