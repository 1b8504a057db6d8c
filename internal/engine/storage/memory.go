package storage

import (
	"context"
	"sync"

	"github.com/blackroad/searchcore/internal/engine/catalog"
)

// MemStore is an in-memory Store used by tests. Contents do not survive the
// process.
type MemStore struct {
	mu        sync.Mutex
	indexes   map[string]*catalog.Index
	documents map[string]map[string][]byte          // indexUID -> docID -> raw
	postings  map[string]map[string][]PostingRecord // indexUID -> docID -> rows
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		indexes:   make(map[string]*catalog.Index),
		documents: make(map[string]map[string][]byte),
		postings:  make(map[string]map[string][]PostingRecord),
	}
}

func (s *MemStore) LoadIndexes(ctx context.Context) ([]*catalog.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*catalog.Index, 0, len(s.indexes))
	for _, idx := range s.indexes {
		out = append(out, idx.Clone())
	}
	return out, nil
}

func (s *MemStore) SaveIndex(ctx context.Context, idx *catalog.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[idx.UID] = idx.Clone()
	return nil
}

func (s *MemStore) PutDocument(ctx context.Context, indexUID, docID string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.documents[indexUID]
	if !ok {
		docs = make(map[string][]byte)
		s.documents[indexUID] = docs
	}
	docs[docID] = append([]byte(nil), raw...)
	return nil
}

func (s *MemStore) DeleteDocument(ctx context.Context, indexUID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents[indexUID], docID)
	delete(s.postings[indexUID], docID)
	return nil
}

func (s *MemStore) LoadDocuments(ctx context.Context, indexUID string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.documents[indexUID]))
	for id, raw := range s.documents[indexUID] {
		out[id] = append([]byte(nil), raw...)
	}
	return out, nil
}

func (s *MemStore) DocumentsSize(ctx context.Context, indexUID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var size int64
	for _, raw := range s.documents[indexUID] {
		size += int64(len(raw))
	}
	return size, nil
}

func (s *MemStore) ReplaceDocumentPostings(ctx context.Context, indexUID, docID string, rows []PostingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDoc, ok := s.postings[indexUID]
	if !ok {
		byDoc = make(map[string][]PostingRecord)
		s.postings[indexUID] = byDoc
	}
	if len(rows) == 0 {
		delete(byDoc, docID)
		return nil
	}
	byDoc[docID] = append([]PostingRecord(nil), rows...)
	return nil
}

func (s *MemStore) LoadPostings(ctx context.Context, indexUID string) ([]PostingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PostingRecord
	for _, rows := range s.postings[indexUID] {
		out = append(out, rows...)
	}
	return out, nil
}

func (s *MemStore) Close() error { return nil }
