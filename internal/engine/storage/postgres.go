package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/blackroad/searchcore/internal/engine/catalog"
	"github.com/blackroad/searchcore/pkg/postgres"
)

// schema creates the four persisted relations. field_stats is part of the
// schema but no code path reads or writes it.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS indexes (
		uid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		primary_key TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		total_documents INTEGER NOT NULL DEFAULT 0,
		facets TEXT,
		ranking_rules TEXT,
		searchable_attrs TEXT,
		filterable_attrs TEXT,
		sortable_attrs TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS index_documents (
		index_uid TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		document TEXT NOT NULL,
		PRIMARY KEY (index_uid, doc_id)
	)`,
	`CREATE TABLE IF NOT EXISTS field_stats (
		index_uid TEXT NOT NULL,
		field TEXT NOT NULL,
		total_docs INTEGER,
		avg_length DOUBLE PRECISION,
		PRIMARY KEY (index_uid, field)
	)`,
	`CREATE TABLE IF NOT EXISTS term_index (
		index_uid TEXT NOT NULL,
		term TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		field TEXT NOT NULL,
		positions TEXT,
		PRIMARY KEY (index_uid, term, doc_id, field)
	)`,
}

// PostgresStore persists the logical schema in PostgreSQL via lib/pq.
type PostgresStore struct {
	client *postgres.Client
	logger *slog.Logger
}

// NewPostgresStore ensures the schema exists and returns a store backed by
// the given client.
func NewPostgresStore(ctx context.Context, client *postgres.Client) (*PostgresStore, error) {
	for _, stmt := range schema {
		if _, err := client.DB.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &PostgresStore{
		client: client,
		logger: slog.Default().With("component", "postgres-store"),
	}, nil
}

func (s *PostgresStore) LoadIndexes(ctx context.Context) ([]*catalog.Index, error) {
	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT uid, name, primary_key, created_at, updated_at, total_documents,
		       facets, ranking_rules, searchable_attrs, filterable_attrs, sortable_attrs
		FROM indexes`)
	if err != nil {
		return nil, fmt.Errorf("loading indexes: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Index
	for rows.Next() {
		idx := &catalog.Index{}
		var facets, rules, searchable, filterable, sortable sql.NullString
		if err := rows.Scan(
			&idx.UID, &idx.Name, &idx.PrimaryKey, &idx.CreatedAt, &idx.UpdatedAt,
			&idx.TotalDocuments, &facets, &rules, &searchable, &filterable, &sortable,
		); err != nil {
			return nil, fmt.Errorf("scanning index row: %w", err)
		}
		idx.Facets = decodeStringList(facets)
		idx.RankingRules = decodeStringList(rules)
		idx.SearchableAttrs = decodeStringList(searchable)
		idx.FilterableAttrs = decodeStringList(filterable)
		idx.SortableAttrs = decodeStringList(sortable)
		out = append(out, idx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveIndex(ctx context.Context, idx *catalog.Index) error {
	facets, err := encodeStringList(idx.Facets)
	if err != nil {
		return err
	}
	rules, err := encodeStringList(idx.RankingRules)
	if err != nil {
		return err
	}
	searchable, err := encodeStringList(idx.SearchableAttrs)
	if err != nil {
		return err
	}
	filterable, err := encodeStringList(idx.FilterableAttrs)
	if err != nil {
		return err
	}
	sortable, err := encodeStringList(idx.SortableAttrs)
	if err != nil {
		return err
	}
	_, err = s.client.DB.ExecContext(ctx, `
		INSERT INTO indexes
			(uid, name, primary_key, created_at, updated_at, total_documents,
			 facets, ranking_rules, searchable_attrs, filterable_attrs, sortable_attrs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (uid) DO UPDATE SET
			name = EXCLUDED.name,
			primary_key = EXCLUDED.primary_key,
			updated_at = EXCLUDED.updated_at,
			total_documents = EXCLUDED.total_documents,
			facets = EXCLUDED.facets,
			ranking_rules = EXCLUDED.ranking_rules,
			searchable_attrs = EXCLUDED.searchable_attrs,
			filterable_attrs = EXCLUDED.filterable_attrs,
			sortable_attrs = EXCLUDED.sortable_attrs`,
		idx.UID, idx.Name, idx.PrimaryKey, idx.CreatedAt, idx.UpdatedAt, idx.TotalDocuments,
		facets, rules, searchable, filterable, sortable,
	)
	if err != nil {
		return fmt.Errorf("saving index %q: %w", idx.UID, err)
	}
	return nil
}

func (s *PostgresStore) LoadDocuments(ctx context.Context, indexUID string) (map[string][]byte, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT doc_id, document FROM index_documents WHERE index_uid = $1`, indexUID)
	if err != nil {
		return nil, fmt.Errorf("loading documents for %q: %w", indexUID, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var docID, raw string
		if err := rows.Scan(&docID, &raw); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		out[docID] = []byte(raw)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutDocument(ctx context.Context, indexUID, docID string, raw []byte) error {
	_, err := s.client.DB.ExecContext(ctx, `
		INSERT INTO index_documents (index_uid, doc_id, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (index_uid, doc_id) DO UPDATE SET document = EXCLUDED.document`,
		indexUID, docID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("storing document %s/%s: %w", indexUID, docID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, indexUID, docID string) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM index_documents WHERE index_uid = $1 AND doc_id = $2`,
			indexUID, docID,
		); err != nil {
			return fmt.Errorf("deleting document %s/%s: %w", indexUID, docID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM term_index WHERE index_uid = $1 AND doc_id = $2`,
			indexUID, docID,
		); err != nil {
			return fmt.Errorf("deleting postings for %s/%s: %w", indexUID, docID, err)
		}
		return nil
	})
}

func (s *PostgresStore) DocumentsSize(ctx context.Context, indexUID string) (int64, error) {
	var size sql.NullInt64
	err := s.client.DB.QueryRowContext(ctx,
		`SELECT SUM(LENGTH(document)) FROM index_documents WHERE index_uid = $1`, indexUID,
	).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("measuring documents for %q: %w", indexUID, err)
	}
	return size.Int64, nil
}

func (s *PostgresStore) LoadPostings(ctx context.Context, indexUID string) ([]PostingRecord, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT term, doc_id, field, positions FROM term_index WHERE index_uid = $1`, indexUID)
	if err != nil {
		return nil, fmt.Errorf("loading postings for %q: %w", indexUID, err)
	}
	defer rows.Close()

	var out []PostingRecord
	for rows.Next() {
		var rec PostingRecord
		var positions sql.NullString
		if err := rows.Scan(&rec.Term, &rec.DocID, &rec.Field, &positions); err != nil {
			return nil, fmt.Errorf("scanning posting row: %w", err)
		}
		if positions.Valid {
			if err := json.Unmarshal([]byte(positions.String), &rec.Positions); err != nil {
				return nil, fmt.Errorf("parsing positions for term %q: %w", rec.Term, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplaceDocumentPostings(ctx context.Context, indexUID, docID string, recs []PostingRecord) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM term_index WHERE index_uid = $1 AND doc_id = $2`,
			indexUID, docID,
		); err != nil {
			return fmt.Errorf("purging postings for %s/%s: %w", indexUID, docID, err)
		}
		for _, rec := range recs {
			positions, err := json.Marshal(rec.Positions)
			if err != nil {
				return fmt.Errorf("marshaling positions for term %q: %w", rec.Term, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO term_index (index_uid, term, doc_id, field, positions)
				VALUES ($1, $2, $3, $4, $5)`,
				indexUID, rec.Term, docID, rec.Field, string(positions),
			); err != nil {
				return fmt.Errorf("inserting posting (%s, %s): %w", rec.Term, rec.Field, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Close() error {
	return s.client.Close()
}

func encodeStringList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshaling attribute list: %w", err)
	}
	return string(data), nil
}

func decodeStringList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return []string{}
	}
	return out
}
