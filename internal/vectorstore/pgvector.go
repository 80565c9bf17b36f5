package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/kubesage/kubesage/internal/log"
)

// upsertDocumentSQL replaces content, embedding and metadata on ID conflict.
const upsertDocumentSQL = `INSERT INTO documents (id, namespace, content, embedding, metadata)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE
	SET namespace = EXCLUDED.namespace,
	    content = EXCLUDED.content,
	    embedding = EXCLUDED.embedding,
	    metadata = EXCLUDED.metadata,
	    updated_at = now()`

// PgvectorStore persists documents in PostgreSQL with the pgvector
// extension. Unlike the HTTP backends it has a queryable metadata index
// (a GIN index on the jsonb column) and therefore implements
// MetadataDeleter as a fast path for delete-by-attribute.
//
// PgvectorStore is safe for concurrent use.
type PgvectorStore struct {
	pool       *pgxpool.Pool
	namespace  string
	dimensions int
	logger     log.Logger
}

// NewPgvector creates a pgvector-backed store. The documents table must
// exist; see db/migrations.
func NewPgvector(pool *pgxpool.Pool, namespace string, dimensions int, logger log.Logger) (*PgvectorStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &PgvectorStore{pool: pool, namespace: namespace, dimensions: dimensions, logger: logger}, nil
}

// Upsert implements Store.
func (s *PgvectorStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			s.logger.Debug("upsert rollback", "error", rbErr)
		}
	}()

	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", doc.ID, err)
		}
		if _, err := tx.Exec(ctx, upsertDocumentSQL,
			doc.ID, s.namespace, doc.Content, pgvector.NewVector(doc.Embedding), metadata,
		); err != nil {
			return fmt.Errorf("upserting document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// Query implements Store using cosine distance. filter is applied as a
// jsonb containment predicate, which uses the GIN index.
func (s *PgvectorStore) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]QueryMatch, error) {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encoding filter: %w", err)
	}
	if filter == nil {
		filterJSON = []byte(`{}`)
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		 FROM documents
		 WHERE namespace = $2 AND metadata @> $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, s.namespace, filterJSON, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var matches []QueryMatch
	for rows.Next() {
		var m QueryMatch
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.Content, &metadata, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", m.ID, err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	if matches == nil {
		matches = []QueryMatch{}
	}
	return matches, nil
}

// Delete implements Store. Absent IDs are ignored.
func (s *PgvectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return nil
}

// ListIDs implements Store with keyset pagination ordered by ID; the page
// token is the last ID of the previous page.
func (s *PgvectorStore) ListIDs(ctx context.Context, limit int, pageToken, namespace string) (ListPage, error) {
	limit = clampLimit(limit)
	ns := s.resolveNamespace(namespace)

	rows, err := s.pool.Query(ctx,
		`SELECT id FROM documents
		 WHERE namespace = $1 AND id > $2
		 ORDER BY id
		 LIMIT $3`,
		ns, pageToken, limit,
	)
	if err != nil {
		return ListPage{}, fmt.Errorf("listing document ids: %w", err)
	}
	defer rows.Close()

	page := ListPage{IDs: []string{}}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ListPage{}, fmt.Errorf("scanning id: %w", err)
		}
		page.IDs = append(page.IDs, id)
	}
	if err := rows.Err(); err != nil {
		return ListPage{}, fmt.Errorf("iterating ids: %w", err)
	}

	if len(page.IDs) == limit {
		page.NextToken = page.IDs[len(page.IDs)-1]
	}
	return page, nil
}

// FetchByIDs implements Store.
func (s *PgvectorStore) FetchByIDs(ctx context.Context, ids []string, namespace string) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, content, metadata FROM documents
		 WHERE namespace = $1 AND id = ANY($2)
		 ORDER BY id`,
		s.resolveNamespace(namespace), ids,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var doc Document
		var metadata []byte
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// Stats implements Store.
func (s *PgvectorStore) Stats(ctx context.Context) (Stats, error) {
	var count int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE namespace = $1`, s.namespace,
	).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}
	return Stats{TotalDocuments: count, Dimensions: s.dimensions}, nil
}

// HealthCheck implements Store.
func (s *PgvectorStore) HealthCheck(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}

// DeleteByMetadata implements MetadataDeleter: a single filtered delete
// instead of the paginated scan the HTTP backends require.
func (s *PgvectorStore) DeleteByMetadata(ctx context.Context, key, value, namespace string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE namespace = $1 AND metadata->>$2 = $3`,
		s.resolveNamespace(namespace), key, value,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting by metadata %s=%s: %w", key, value, err)
	}
	return int(tag.RowsAffected()), nil
}

// resolveNamespace prefers the per-call namespace over the configured one.
func (s *PgvectorStore) resolveNamespace(namespace string) string {
	if namespace != "" {
		return namespace
	}
	return s.namespace
}
