// Package catalog owns search index metadata: uid, primary key, timestamps,
// the total_documents counter, and the attribute configuration lists.
package catalog

import (
	"fmt"
	"time"

	apperrors "github.com/blackroad/searchcore/pkg/errors"
)

// Index is the metadata record for one named document collection.
//
// The attribute lists are descriptive configuration: the scorer and filter
// engine scan all non-primary-key fields regardless of their contents.
type Index struct {
	UID             string    `json:"uid"`
	Name            string    `json:"name"`
	PrimaryKey      string    `json:"primary_key"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	TotalDocuments  int       `json:"total_documents"`
	Facets          []string  `json:"facets"`
	RankingRules    []string  `json:"ranking_rules"`
	SearchableAttrs []string  `json:"searchable_attrs"`
	FilterableAttrs []string  `json:"filterable_attrs"`
	SortableAttrs   []string  `json:"sortable_attrs"`
}

// Clone returns a deep copy of the index metadata.
func (i *Index) Clone() *Index {
	out := *i
	out.Facets = append([]string(nil), i.Facets...)
	out.RankingRules = append([]string(nil), i.RankingRules...)
	out.SearchableAttrs = append([]string(nil), i.SearchableAttrs...)
	out.FilterableAttrs = append([]string(nil), i.FilterableAttrs...)
	out.SortableAttrs = append([]string(nil), i.SortableAttrs...)
	return &out
}

// DefaultRankingRules returns the fixed ranking-rule list assigned to every
// new index. The rules are configuration only and are not consumed by the
// scorer.
func DefaultRankingRules() []string {
	return []string{"typo", "words", "proximity", "attribute", "exactness"}
}

// Catalog is an in-memory registry of index metadata. It is not safe for
// concurrent use; the engine serialises access behind its own lock.
type Catalog struct {
	indexes map[string]*Index
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{indexes: make(map[string]*Index)}
}

// Load replaces the catalog contents with metadata hydrated from storage.
func (c *Catalog) Load(indexes []*Index) {
	c.indexes = make(map[string]*Index, len(indexes))
	for _, idx := range indexes {
		c.indexes[idx.UID] = idx
	}
}

// Create registers a new index. The display name defaults to the uid.
func (c *Catalog) Create(uid, primaryKey, name string) (*Index, error) {
	if _, exists := c.indexes[uid]; exists {
		return nil, fmt.Errorf("index %q: %w", uid, apperrors.ErrIndexExists)
	}
	if name == "" {
		name = uid
	}
	now := time.Now().UTC()
	idx := &Index{
		UID:             uid,
		Name:            name,
		PrimaryKey:      primaryKey,
		CreatedAt:       now,
		UpdatedAt:       now,
		TotalDocuments:  0,
		Facets:          []string{},
		RankingRules:    DefaultRankingRules(),
		SearchableAttrs: []string{},
		FilterableAttrs: []string{},
		SortableAttrs:   []string{},
	}
	c.indexes[uid] = idx
	return idx, nil
}

// Get returns the index with the given uid.
func (c *Catalog) Get(uid string) (*Index, error) {
	idx, ok := c.indexes[uid]
	if !ok {
		return nil, fmt.Errorf("index %q: %w", uid, apperrors.ErrIndexNotFound)
	}
	return idx, nil
}

// All returns every registered index.
func (c *Catalog) All() []*Index {
	out := make([]*Index, 0, len(c.indexes))
	for _, idx := range c.indexes {
		out = append(out, idx)
	}
	return out
}

// Len returns the number of registered indexes.
func (c *Catalog) Len() int { return len(c.indexes) }

// SetSearchableAttrs replaces the searchable attribute list and bumps
// updated_at.
func (c *Catalog) SetSearchableAttrs(uid string, attrs []string) (*Index, error) {
	idx, err := c.Get(uid)
	if err != nil {
		return nil, err
	}
	idx.SearchableAttrs = append([]string(nil), attrs...)
	idx.UpdatedAt = time.Now().UTC()
	return idx, nil
}

// SetFilterableAttrs replaces the filterable attribute list and bumps
// updated_at.
func (c *Catalog) SetFilterableAttrs(uid string, attrs []string) (*Index, error) {
	idx, err := c.Get(uid)
	if err != nil {
		return nil, err
	}
	idx.FilterableAttrs = append([]string(nil), attrs...)
	idx.UpdatedAt = time.Now().UTC()
	return idx, nil
}

// SetSortableAttrs replaces the sortable attribute list and bumps updated_at.
func (c *Catalog) SetSortableAttrs(uid string, attrs []string) (*Index, error) {
	idx, err := c.Get(uid)
	if err != nil {
		return nil, err
	}
	idx.SortableAttrs = append([]string(nil), attrs...)
	idx.UpdatedAt = time.Now().UTC()
	return idx, nil
}
