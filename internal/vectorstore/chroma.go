package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kubesage/kubesage/internal/log"
)

// namespaceKey is the metadata field used to emulate namespaces on
// backends without native namespace support.
const namespaceKey = "namespace"

// chromaTimeout bounds individual Chroma HTTP calls.
const chromaTimeout = 30 * time.Second

// ChromaStore talks to a Chroma server over its v1 REST API. The target
// collection is resolved lazily on first use and created if absent.
//
// Chroma has no native ID pagination, so ListIDs emulates pages with
// numeric offset tokens. Namespaces are emulated via a reserved metadata
// field.
//
// ChromaStore is safe for concurrent use.
type ChromaStore struct {
	baseURL    string
	collection string
	namespace  string
	dimensions int
	httpClient *http.Client
	logger     log.Logger

	mu           sync.Mutex
	collectionID string
}

// NewChroma creates a Chroma-backed store targeting the named collection.
func NewChroma(baseURL, collection, namespace string, dimensions int, logger log.Logger) (*ChromaStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("chroma base URL is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("chroma collection is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &ChromaStore{
		baseURL:    baseURL,
		collection: collection,
		namespace:  namespace,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: chromaTimeout},
		logger:     logger,
	}, nil
}

// ensureCollection resolves the collection ID, creating the collection on
// first use.
func (s *ChromaStore) ensureCollection(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collectionID != "" {
		return s.collectionID, nil
	}

	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]any{"name": s.collection, "get_or_create": true}
	if err := s.doRequest(ctx, http.MethodPost, "/api/v1/collections", body, &resp); err != nil {
		return "", fmt.Errorf("resolving collection %q: %w", s.collection, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("collection %q: empty id in response", s.collection)
	}

	s.collectionID = resp.ID
	s.logger.Debug("chroma collection resolved", "collection", s.collection, "id", resp.ID)
	return resp.ID, nil
}

// Upsert implements Store.
func (s *ChromaStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	documents := make([]string, len(docs))
	metadatas := make([]map[string]string, len(docs))
	for i, doc := range docs {
		md := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			md[k] = v
		}
		if s.namespace != "" {
			md[namespaceKey] = s.namespace
		}
		ids[i] = doc.ID
		embeddings[i] = doc.Embedding
		documents[i] = doc.Content
		metadatas[i] = md
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	if err := s.doRequest(ctx, http.MethodPost, "/api/v1/collections/"+collID+"/upsert", body, nil); err != nil {
		return fmt.Errorf("chroma upsert: %w", err)
	}
	return nil
}

// Query implements Store. Chroma returns distances; scores are reported
// as 1 - distance so higher means more similar.
func (s *ChromaStore) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]QueryMatch, error) {
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"query_embeddings": [][]float32{embedding},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if where := s.buildWhere(filter, ""); where != nil {
		body["where"] = where
	}

	var resp struct {
		IDs       [][]string            `json:"ids"`
		Documents [][]string            `json:"documents"`
		Metadatas [][]map[string]string `json:"metadatas"`
		Distances [][]float64           `json:"distances"`
	}
	if err := s.doRequest(ctx, http.MethodPost, "/api/v1/collections/"+collID+"/query", body, &resp); err != nil {
		return nil, fmt.Errorf("chroma query: %w", err)
	}
	if len(resp.IDs) == 0 {
		return []QueryMatch{}, nil
	}

	matches := make([]QueryMatch, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		m := QueryMatch{ID: id, Metadata: map[string]string{}}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			m.Content = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) && resp.Metadatas[0][i] != nil {
			m.Metadata = stripNamespace(resp.Metadatas[0][i])
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			m.Score = 1 - resp.Distances[0][i]
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Delete implements Store.
func (s *ChromaStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{"ids": ids}
	if err := s.doRequest(ctx, http.MethodPost, "/api/v1/collections/"+collID+"/delete", body, nil); err != nil {
		return fmt.Errorf("chroma delete: %w", err)
	}
	return nil
}

// DeleteByMetadata implements MetadataDeleter with a server-side where
// filter. Chroma responds with the IDs it removed.
func (s *ChromaStore) DeleteByMetadata(ctx context.Context, key, value, namespace string) (int, error) {
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return 0, err
	}
	body := map[string]any{"where": s.buildWhere(map[string]string{key: value}, namespace)}
	var deleted []string
	if err := s.doRequest(ctx, http.MethodPost, "/api/v1/collections/"+collID+"/delete", body, &deleted); err != nil {
		return 0, fmt.Errorf("chroma delete by metadata: %w", err)
	}
	return len(deleted), nil
}

// ListIDs implements Store. Pages are emulated with offset tokens: the
// returned NextToken is the numeric offset of the next page.
func (s *ChromaStore) ListIDs(ctx context.Context, limit int, pageToken, namespace string) (ListPage, error) {
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return ListPage{}, err
	}

	limit = clampLimit(limit)
	offset := 0
	if pageToken != "" {
		offset, err = strconv.Atoi(pageToken)
		if err != nil || offset < 0 {
			return ListPage{}, fmt.Errorf("invalid page token %q", pageToken)
		}
	}

	body := map[string]any{
		"limit":   limit,
		"offset":  offset,
		"include": []string{},
	}
	if where := s.buildWhere(nil, namespace); where != nil {
		body["where"] = where
	}

	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := s.doRequest(ctx, http.MethodPost, "/api/v1/collections/"+collID+"/get", body, &resp); err != nil {
		return ListPage{}, fmt.Errorf("chroma list: %w", err)
	}

	page := ListPage{IDs: resp.IDs}
	if len(resp.IDs) == limit {
		page.NextToken = strconv.Itoa(offset + limit)
	}
	return page, nil
}

// FetchByIDs implements Store.
func (s *ChromaStore) FetchByIDs(ctx context.Context, ids []string, namespace string) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"ids":     ids,
		"include": []string{"documents", "metadatas"},
	}
	var resp struct {
		IDs       []string            `json:"ids"`
		Documents []string            `json:"documents"`
		Metadatas []map[string]string `json:"metadatas"`
	}
	if err := s.doRequest(ctx, http.MethodPost, "/api/v1/collections/"+collID+"/get", body, &resp); err != nil {
		return nil, fmt.Errorf("chroma fetch: %w", err)
	}

	docs := make([]Document, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		doc := Document{ID: id, Metadata: map[string]string{}}
		if i < len(resp.Documents) {
			doc.Content = resp.Documents[i]
		}
		if i < len(resp.Metadatas) && resp.Metadatas[i] != nil {
			doc.Metadata = stripNamespace(resp.Metadatas[i])
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Stats implements Store. Dimensions come from configuration since Chroma
// does not report them.
func (s *ChromaStore) Stats(ctx context.Context) (Stats, error) {
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return Stats{}, err
	}
	var count int
	if err := s.doRequest(ctx, http.MethodGet, "/api/v1/collections/"+collID+"/count", nil, &count); err != nil {
		return Stats{}, fmt.Errorf("chroma stats: %w", err)
	}
	return Stats{TotalDocuments: count, Dimensions: s.dimensions}, nil
}

// HealthCheck implements Store via the heartbeat endpoint.
func (s *ChromaStore) HealthCheck(ctx context.Context) bool {
	err := s.doRequest(ctx, http.MethodGet, "/api/v1/heartbeat", nil, nil)
	if err != nil {
		s.logger.Debug("chroma heartbeat failed", "error", err)
	}
	return err == nil
}

// buildWhere constructs the Chroma where clause from a metadata filter and
// the effective namespace. Returns nil when there is nothing to filter.
func (s *ChromaStore) buildWhere(filter map[string]string, namespace string) map[string]any {
	ns := namespace
	if ns == "" {
		ns = s.namespace
	}

	clauses := make([]map[string]any, 0, len(filter)+1)
	for k, v := range filter {
		clauses = append(clauses, map[string]any{k: map[string]any{"$eq": v}})
	}
	if ns != "" {
		clauses = append(clauses, map[string]any{namespaceKey: map[string]any{"$eq": ns}})
	}

	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return map[string]any{"$and": clauses}
	}
}

// doRequest executes one HTTP call against the Chroma server.
func (s *ChromaStore) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// stripNamespace removes the reserved namespace field from fetched metadata.
func stripNamespace(metadata map[string]string) map[string]string {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if k == namespaceKey {
			continue
		}
		md[k] = v
	}
	return md
}
