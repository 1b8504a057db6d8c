// Package storage persists the search core's logical schema: index metadata,
// raw documents, and term postings. The engine keeps its working set in
// memory, loads from a Store at startup, and writes through on every
// mutation.
package storage

import (
	"context"

	"github.com/blackroad/searchcore/internal/engine/catalog"
)

// PostingRecord is one row of the term_index relation.
type PostingRecord struct {
	Term      string
	DocID     string
	Field     string
	Positions []int
}

// Store is the persistence boundary of the engine. Implementations must keep
// each method atomic; cross-call atomicity is not required.
type Store interface {
	// LoadIndexes returns the metadata of every persisted index.
	LoadIndexes(ctx context.Context) ([]*catalog.Index, error)
	// SaveIndex inserts or fully replaces one index metadata record.
	SaveIndex(ctx context.Context, idx *catalog.Index) error

	// LoadDocuments returns the raw serialised documents of one index,
	// keyed by doc id.
	LoadDocuments(ctx context.Context, indexUID string) (map[string][]byte, error)
	// PutDocument inserts or replaces one raw document.
	PutDocument(ctx context.Context, indexUID, docID string, raw []byte) error
	// DeleteDocument removes one raw document and all of its postings.
	DeleteDocument(ctx context.Context, indexUID, docID string) error
	// DocumentsSize returns the total serialised size of an index's
	// documents in bytes.
	DocumentsSize(ctx context.Context, indexUID string) (int64, error)

	// LoadPostings returns every posting row of one index.
	LoadPostings(ctx context.Context, indexUID string) ([]PostingRecord, error)
	// ReplaceDocumentPostings atomically deletes all posting rows of the
	// document and writes the given rows in their place.
	ReplaceDocumentPostings(ctx context.Context, indexUID, docID string, rows []PostingRecord) error

	Close() error
}
