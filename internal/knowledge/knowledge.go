// Package knowledge is the retrieval side of the knowledge base: embed a
// query, search the vector store, and report index health.
package knowledge

import (
	"context"
	"fmt"

	"github.com/kubesage/kubesage/internal/log"
	"github.com/kubesage/kubesage/internal/vectorstore"
)

// DefaultTopK is the number of documents retrieved when the caller does
// not override it.
const DefaultTopK = 3

// Embedder is the slice of the embedding provider retrieval needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	TestConnection(ctx context.Context) error
	Model() string
	Dimensions() int
}

// Searcher is the slice of the vector store retrieval needs.
type Searcher interface {
	Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]vectorstore.QueryMatch, error)
	Stats(ctx context.Context) (vectorstore.Stats, error)
	HealthCheck(ctx context.Context) bool
}

// RetrievedDocument is one search hit, ordered by descending relevance.
type RetrievedDocument struct {
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// Status reports the health of the retrieval stack.
type Status struct {
	VectorStoreHealthy bool   `json:"vectorStoreHealthy"`
	EmbedderHealthy    bool   `json:"embedderHealthy"`
	TotalDocuments     int    `json:"totalDocuments"`
	Dimensions         int    `json:"dimensions"`
	Model              string `json:"model"`
}

// SearchOption customizes one Search call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	topK   int
	filter map[string]string
}

// WithTopK overrides the number of documents retrieved. Values below one
// fall back to DefaultTopK.
func WithTopK(topK int) SearchOption {
	return func(o *searchOptions) {
		if topK > 0 {
			o.topK = topK
		}
	}
}

// WithFilter restricts the search to documents whose metadata contains
// every given key/value pair.
func WithFilter(filter map[string]string) SearchOption {
	return func(o *searchOptions) { o.filter = filter }
}

// Service retrieves relevant documents for a query.
type Service struct {
	embedder Embedder
	store    Searcher
	logger   log.Logger
}

// NewService creates the knowledge service.
func NewService(store Searcher, embedder Embedder, logger log.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{embedder: embedder, store: store, logger: logger}, nil
}

// Search embeds the query and returns the nearest documents in descending
// score order. An empty index yields an empty slice, not an error.
func (s *Service) Search(ctx context.Context, query string, opts ...SearchOption) ([]RetrievedDocument, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	options := searchOptions{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&options)
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := s.store.Query(ctx, embedding, options.topK, options.filter)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	docs := make([]RetrievedDocument, len(matches))
	for i, match := range matches {
		docs[i] = RetrievedDocument{
			Content:  match.Content,
			Score:    match.Score,
			Metadata: match.Metadata,
		}
	}

	s.logger.Debug("knowledge search complete", "query_length", len(query), "matches", len(docs), "topK", options.topK)
	return docs, nil
}

// CheckStatus probes the vector store and the embedding provider. Probe
// failures are reported in the result, not as errors.
func (s *Service) CheckStatus(ctx context.Context) Status {
	status := Status{
		VectorStoreHealthy: s.store.HealthCheck(ctx),
		Model:              s.embedder.Model(),
	}

	if stats, err := s.store.Stats(ctx); err == nil {
		status.TotalDocuments = stats.TotalDocuments
		status.Dimensions = stats.Dimensions
	} else {
		s.logger.Warn("vector store stats unavailable", "error", err)
	}

	if err := s.embedder.TestConnection(ctx); err == nil {
		status.EmbedderHealthy = true
	} else {
		s.logger.Warn("embedding provider unreachable", "error", err)
	}
	return status
}
