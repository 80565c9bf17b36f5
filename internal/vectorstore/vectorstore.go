// Package vectorstore provides pluggable vector index backends behind a
// single Store interface.
//
// Three backends are supported: Pinecone and Chroma over their REST APIs,
// and PostgreSQL with the pgvector extension. Backends are selected by a
// config-supplied identifier via New.
//
// Listing is paginated: callers follow ListPage.NextToken until it is
// empty. Deleting IDs that no longer exist is a no-op on every backend —
// concurrent deletes of overlapping ID sets must not fail.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedStore indicates an unknown backend identifier.
	ErrUnsupportedStore = errors.New("unsupported vector store")

	// ErrNotFound indicates a requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// MaxPageSize bounds ListIDs and FetchByIDs batch sizes.
const MaxPageSize = 100

// Document is one stored chunk: content plus its embedding and flat
// string metadata.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata"`
}

// QueryMatch is one similarity search hit. Score is normalized so higher
// is more similar, in [0, 1] for cosine-based backends.
type QueryMatch struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// ListPage is one page of chunk IDs. An empty NextToken means the listing
// is exhausted.
type ListPage struct {
	IDs       []string `json:"ids"`
	NextToken string   `json:"nextToken,omitempty"`
}

// Stats summarizes the index.
type Stats struct {
	TotalDocuments int `json:"totalDocuments"`
	Dimensions     int `json:"dimensions"`
}

// Store is the contract shared by all vector index backends.
//
// There is deliberately no delete-by-metadata operation here: backends
// without a secondary index on metadata cannot support it. Callers that
// need it scan via ListIDs/FetchByIDs, which is O(total documents); see
// MetadataDeleter for the fast path.
type Store interface {
	// Upsert inserts or replaces documents by ID.
	Upsert(ctx context.Context, docs []Document) error

	// Query returns up to topK nearest documents. filter restricts matches
	// to documents whose metadata contains every given key/value pair.
	Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]QueryMatch, error)

	// Delete removes documents by ID. Absent IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// ListIDs returns one page of document IDs. limit is clamped to
	// [1, MaxPageSize]. pageToken comes from the previous page.
	ListIDs(ctx context.Context, limit int, pageToken, namespace string) (ListPage, error)

	// FetchByIDs returns full documents for the given IDs. Unknown IDs are
	// silently omitted from the result.
	FetchByIDs(ctx context.Context, ids []string, namespace string) ([]Document, error)

	// Stats returns index-wide document count and vector dimensions.
	Stats(ctx context.Context) (Stats, error)

	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) bool
}

// MetadataDeleter is the optional capability for backends with a queryable
// metadata index. Implementations delete every document in the namespace
// whose metadata[key] equals value and return the number removed.
type MetadataDeleter interface {
	DeleteByMetadata(ctx context.Context, key, value, namespace string) (int, error)
}

// clampLimit bounds a page size to [1, MaxPageSize].
func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
