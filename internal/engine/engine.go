// Package engine implements the single-node search core: index and document
// lifecycle, inverted-index maintenance, BM25 scoring, filtering, facet
// aggregation, and query orchestration.
//
// The engine keeps its working set in memory, hydrates it from a
// storage.Store at startup, and writes through on every mutation. One
// RWMutex serialises writes against each other and against reads, so a
// search always observes documents whose postings are current.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/blackroad/searchcore/internal/engine/catalog"
	"github.com/blackroad/searchcore/internal/engine/facet"
	"github.com/blackroad/searchcore/internal/engine/filter"
	"github.com/blackroad/searchcore/internal/engine/postings"
	"github.com/blackroad/searchcore/internal/engine/ranker"
	"github.com/blackroad/searchcore/internal/engine/storage"
	"github.com/blackroad/searchcore/internal/engine/tokenizer"
	"github.com/blackroad/searchcore/internal/engine/value"
	apperrors "github.com/blackroad/searchcore/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the page size applied when a query does not specify one.
const DefaultLimit = 20

// Engine owns every index of the node.
type Engine struct {
	mu       sync.RWMutex
	catalog  *catalog.Catalog
	store    storage.Store
	docs     map[string]map[string]value.Document // indexUID -> docID -> document
	postings map[string]*postings.Index           // indexUID -> inverted index
	logger   *slog.Logger
}

// New creates an Engine hydrated from the given store.
func New(ctx context.Context, store storage.Store) (*Engine, error) {
	e := &Engine{
		catalog:  catalog.New(),
		store:    store,
		docs:     make(map[string]map[string]value.Document),
		postings: make(map[string]*postings.Index),
		logger:   slog.Default().With("component", "engine"),
	}
	if err := e.load(ctx); err != nil {
		return nil, fmt.Errorf("hydrating engine: %w", err)
	}
	return e, nil
}

// load hydrates index metadata, documents, and postings from the store.
func (e *Engine) load(ctx context.Context) error {
	indexes, err := e.store.LoadIndexes(ctx)
	if err != nil {
		return err
	}
	e.catalog.Load(indexes)

	for _, idx := range indexes {
		raws, err := e.store.LoadDocuments(ctx, idx.UID)
		if err != nil {
			return err
		}
		docs := make(map[string]value.Document, len(raws))
		for docID, raw := range raws {
			var doc value.Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parsing document %s/%s: %w", idx.UID, docID, err)
			}
			docs[docID] = doc
		}
		e.docs[idx.UID] = docs

		px := postings.NewIndex()
		recs, err := e.store.LoadPostings(ctx, idx.UID)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			px.Add(rec.Term, rec.DocID, rec.Field, rec.Positions)
		}
		e.postings[idx.UID] = px

		e.logger.Info("index loaded",
			"index", idx.UID,
			"documents", len(docs),
			"terms", px.TermCount(),
		)
	}
	return nil
}

// CreateIndex registers a new index with the given uid and primary-key field.
// The display name defaults to the uid.
func (e *Engine) CreateIndex(ctx context.Context, uid, primaryKey, name string) (*catalog.Index, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.catalog.Create(uid, primaryKey, name)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveIndex(ctx, idx); err != nil {
		return nil, fmt.Errorf("persisting index %q: %w", uid, err)
	}
	e.docs[uid] = make(map[string]value.Document)
	e.postings[uid] = postings.NewIndex()

	e.logger.Info("index created", "index", uid, "primary_key", primaryKey)
	return idx.Clone(), nil
}

// GetIndex returns a copy of the index metadata.
func (e *Engine) GetIndex(uid string) (*catalog.Index, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, err := e.catalog.Get(uid)
	if err != nil {
		return nil, err
	}
	return idx.Clone(), nil
}

// ListIndexes returns a copy of every index's metadata, sorted by uid.
func (e *Engine) ListIndexes() []*catalog.Index {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*catalog.Index, 0, e.catalog.Len())
	for _, idx := range e.catalog.All() {
		out = append(out, idx.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// SetSearchableAttrs replaces the searchable attribute list.
func (e *Engine) SetSearchableAttrs(ctx context.Context, uid string, attrs []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.catalog.SetSearchableAttrs(uid, attrs)
	if err != nil {
		return err
	}
	return e.saveIndex(ctx, idx)
}

// SetFilterableAttrs replaces the filterable attribute list.
func (e *Engine) SetFilterableAttrs(ctx context.Context, uid string, attrs []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.catalog.SetFilterableAttrs(uid, attrs)
	if err != nil {
		return err
	}
	return e.saveIndex(ctx, idx)
}

// SetSortableAttrs replaces the sortable attribute list.
func (e *Engine) SetSortableAttrs(ctx context.Context, uid string, attrs []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, err := e.catalog.SetSortableAttrs(uid, attrs)
	if err != nil {
		return err
	}
	return e.saveIndex(ctx, idx)
}

func (e *Engine) saveIndex(ctx context.Context, idx *catalog.Index) error {
	if err := e.store.SaveIndex(ctx, idx); err != nil {
		return fmt.Errorf("persisting index %q: %w", idx.UID, err)
	}
	return nil
}

// AddDocuments ingests a batch of documents in input order, upserting each
// raw document and fully regenerating its postings. An invalid document
// aborts the remaining batch; documents already written are not rolled back,
// and the total_documents counter is only bumped after a fully successful
// batch, by the batch size regardless of how many ids already existed.
func (e *Engine) AddDocuments(ctx context.Context, uid string, docs []value.Document) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addDocumentsLocked(ctx, uid, docs)
}

func (e *Engine) addDocumentsLocked(ctx context.Context, uid string, docs []value.Document) (int, error) {
	idx, err := e.catalog.Get(uid)
	if err != nil {
		return 0, err
	}

	for _, doc := range docs {
		docID, err := primaryKeyOf(doc, idx.PrimaryKey)
		if err != nil {
			return 0, err
		}
		if err := e.writeDocumentLocked(ctx, idx, docID, doc); err != nil {
			return 0, err
		}
	}

	idx.TotalDocuments += len(docs)
	idx.UpdatedAt = time.Now().UTC()
	if err := e.saveIndex(ctx, idx); err != nil {
		return 0, err
	}

	e.logger.Info("documents ingested",
		"index", uid,
		"count", len(docs),
		"total_documents", idx.TotalDocuments,
	)
	return len(docs), nil
}

// writeDocumentLocked stores the raw document and regenerates all of its
// postings. Stale postings from the previous version are purged before the
// rewrite, so a search never matches terms dropped by an update.
func (e *Engine) writeDocumentLocked(ctx context.Context, idx *catalog.Index, docID string, doc value.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serialising document %s/%s: %w", idx.UID, docID, err)
	}
	if err := e.store.PutDocument(ctx, idx.UID, docID, raw); err != nil {
		return fmt.Errorf("storing document %s/%s: %w", idx.UID, docID, err)
	}
	e.docs[idx.UID][docID] = doc.Clone()

	px := e.postings[idx.UID]
	px.RemoveDocument(docID)
	for _, f := range doc.Fields() {
		if f.Name == idx.PrimaryKey {
			continue
		}
		fieldTerms := tokenizer.Tokenize(f.Value.String())
		positions := make([]int, len(fieldTerms))
		for i := range fieldTerms {
			positions[i] = i
		}
		seen := make(map[string]struct{}, len(fieldTerms))
		for _, term := range fieldTerms {
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			px.Add(term, docID, f.Name, positions)
		}
	}

	rows := make([]storage.PostingRecord, 0)
	for _, p := range px.ForDocument(docID) {
		rows = append(rows, storage.PostingRecord{
			Term:      p.Term,
			DocID:     p.DocID,
			Field:     p.Field,
			Positions: p.Positions,
		})
	}
	if err := e.store.ReplaceDocumentPostings(ctx, idx.UID, docID, rows); err != nil {
		return fmt.Errorf("storing postings for %s/%s: %w", idx.UID, docID, err)
	}
	return nil
}

// UpdateDocument shallow-merges partial fields over the stored document and
// rewrites it through the full ingestion path, which also re-increments
// total_documents: the counter tracks ingestion calls, not distinct ids.
func (e *Engine) UpdateDocument(ctx context.Context, uid, docID string, partial value.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.catalog.Get(uid); err != nil {
		return err
	}
	existing, ok := e.docs[uid][docID]
	if !ok {
		return fmt.Errorf("document %q: %w", docID, apperrors.ErrDocumentNotFound)
	}
	merged := existing.Merge(partial)
	_, err := e.addDocumentsLocked(ctx, uid, []value.Document{merged})
	return err
}

// DeleteDocument removes the raw document and every posting derived from it.
// The total_documents counter decreases by one, floored at zero, whether or
// not the document existed.
func (e *Engine) DeleteDocument(ctx context.Context, uid, docID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.catalog.Get(uid)
	if err != nil {
		return err
	}
	if err := e.store.DeleteDocument(ctx, uid, docID); err != nil {
		return fmt.Errorf("deleting document %s/%s: %w", uid, docID, err)
	}
	delete(e.docs[uid], docID)
	e.postings[uid].RemoveDocument(docID)

	if idx.TotalDocuments > 0 {
		idx.TotalDocuments--
	}
	idx.UpdatedAt = time.Now().UTC()
	if err := e.saveIndex(ctx, idx); err != nil {
		return err
	}

	e.logger.Info("document deleted", "index", uid, "doc_id", docID)
	return nil
}

// GetDocument returns a copy of the stored raw document.
func (e *Engine) GetDocument(uid, docID string) (value.Document, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.catalog.Get(uid); err != nil {
		return value.Document{}, false, err
	}
	doc, ok := e.docs[uid][docID]
	if !ok {
		return value.Document{}, false, nil
	}
	return doc.Clone(), true, nil
}

// SearchParams are the per-query knobs of Search.
type SearchParams struct {
	Query   string
	Filters value.Document
	Facets  []string
	Sort    []string // accepted for interface parity; not applied by ranking
	Limit   int
	Offset  int
}

// Result is the bundle returned by one search.
type Result struct {
	IndexUID          string                    `json:"index_uid"`
	Query             string                    `json:"query"`
	Hits              []value.Document          `json:"hits"`
	Total             int                       `json:"total"`
	ProcessingTimeMs  float64                   `json:"processing_time_ms"`
	FacetDistribution map[string]map[string]int `json:"facet_distribution"`
}

type scoredDoc struct {
	docID string
	score float64
}

// Search runs one ranked query: tokenize, score every document, keep
// positive scores, filter, sort by score descending (doc id ascending on
// ties), paginate, and facet over the full document set of the index.
func (e *Engine) Search(ctx context.Context, uid string, p SearchParams) (*Result, error) {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	idx, err := e.catalog.Get(uid)
	if err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	docs := e.docs[uid]
	px := e.postings[uid]
	terms := tokenizer.Tokenize(p.Query)

	scored := make([]scoredDoc, 0, len(docs))
	for docID, doc := range docs {
		s := ranker.Score(terms, doc, idx.PrimaryKey, idx.TotalDocuments, px.DocFreq)
		if s <= 0 {
			continue
		}
		if p.Filters.Len() > 0 && !filter.Matches(doc, p.Filters) {
			continue
		}
		scored = append(scored, scoredDoc{docID: docID, score: s})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].docID < scored[j].docID
	})

	total := len(scored)
	hits := make([]value.Document, 0, p.Limit)
	if p.Offset < total {
		end := p.Offset + p.Limit
		if end > total {
			end = total
		}
		for _, sd := range scored[p.Offset:end] {
			hits = append(hits, docs[sd.docID].Clone())
		}
	}

	facetDist := map[string]map[string]int{}
	if len(p.Facets) > 0 {
		facetDist = facet.Compute(docs, p.Facets)
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	e.logger.Debug("search executed",
		"index", uid,
		"query", p.Query,
		"terms", terms,
		"total", total,
		"returned", len(hits),
		"elapsed_ms", elapsed,
	)
	return &Result{
		IndexUID:          uid,
		Query:             p.Query,
		Hits:              hits,
		Total:             total,
		ProcessingTimeMs:  elapsed,
		FacetDistribution: facetDist,
	}, nil
}

// SearchQuery is one entry of a federated multi-search request.
type SearchQuery struct {
	IndexUID string
	SearchParams
}

// MultiSearch fans the queries out as independent searches and returns one
// result per query in input order. There is no cross-query deduplication or
// score fusion.
func (e *Engine) MultiSearch(ctx context.Context, queries []SearchQuery) ([]*Result, error) {
	results := make([]*Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			r, err := e.Search(gctx, q.IndexUID, q.SearchParams)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// IndexStats reports the document counter and serialised size of one index.
type IndexStats struct {
	UID            string `json:"uid"`
	Documents      int    `json:"documents"`
	IndexSizeBytes int64  `json:"index_size_bytes"`
}

// EngineStats aggregates counters across all indexes.
type EngineStats struct {
	Indexes        int `json:"indexes"`
	TotalDocuments int `json:"total_documents"`
}

// Stats returns per-index statistics.
func (e *Engine) Stats(ctx context.Context, uid string) (*IndexStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx, err := e.catalog.Get(uid)
	if err != nil {
		return nil, err
	}
	size, err := e.store.DocumentsSize(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("measuring index %q: %w", uid, err)
	}
	return &IndexStats{
		UID:            uid,
		Documents:      idx.TotalDocuments,
		IndexSizeBytes: size,
	}, nil
}

// AggregateStats returns node-wide statistics.
func (e *Engine) AggregateStats() *EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	for _, idx := range e.catalog.All() {
		total += idx.TotalDocuments
	}
	return &EngineStats{
		Indexes:        e.catalog.Len(),
		TotalDocuments: total,
	}
}

// primaryKeyOf derives the document id by stringifying the primary-key
// field's value.
func primaryKeyOf(doc value.Document, primaryKey string) (string, error) {
	v, ok := doc.Get(primaryKey)
	if !ok {
		return "", fmt.Errorf("document missing primary key %q: %w", primaryKey, apperrors.ErrInvalidDocument)
	}
	id := v.String()
	if id == "" {
		return "", fmt.Errorf("document primary key %q is empty: %w", primaryKey, apperrors.ErrInvalidDocument)
	}
	return id, nil
}
