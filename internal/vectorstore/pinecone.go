package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kubesage/kubesage/internal/log"
)

// contentKey is the reserved metadata field carrying the chunk text on
// backends that only persist vectors plus metadata.
const contentKey = "content"

// pineconeTimeout bounds individual Pinecone HTTP calls.
const pineconeTimeout = 30 * time.Second

// PineconeStore talks to a Pinecone serverless index over its data-plane
// REST API. Chunk content travels in the reserved "content" metadata field.
//
// PineconeStore is safe for concurrent use.
type PineconeStore struct {
	host       string
	apiKey     string
	namespace  string
	dimensions int
	httpClient *http.Client
	logger     log.Logger
}

// NewPinecone creates a Pinecone-backed store. host is the index host
// (e.g. "https://my-index-abc123.svc.us-east-1.pinecone.io"); a missing
// scheme defaults to https.
func NewPinecone(host, apiKey, namespace string, dimensions int, logger log.Logger) (*PineconeStore, error) {
	if host == "" {
		return nil, fmt.Errorf("pinecone index host is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone API key is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing pinecone host: %w", err)
	}
	if u.Scheme == "" {
		host = "https://" + host
	}
	return &PineconeStore{
		host:       host,
		apiKey:     apiKey,
		namespace:  namespace,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: pineconeTimeout},
		logger:     logger,
	}, nil
}

type pineconeVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Upsert implements Store.
func (s *PineconeStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	vectors := make([]pineconeVector, len(docs))
	for i, doc := range docs {
		md := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			md[k] = v
		}
		md[contentKey] = doc.Content
		vectors[i] = pineconeVector{ID: doc.ID, Values: doc.Embedding, Metadata: md}
	}

	body := map[string]any{"vectors": vectors}
	if s.namespace != "" {
		body["namespace"] = s.namespace
	}

	if err := s.doRequest(ctx, http.MethodPost, "/vectors/upsert", body, nil); err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	s.logger.Debug("pinecone upsert", "count", len(docs), "namespace", s.namespace)
	return nil
}

// Query implements Store. Metadata filters are translated to Pinecone
// $eq predicates.
func (s *PineconeStore) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]QueryMatch, error) {
	body := map[string]any{
		"vector":          embedding,
		"topK":            topK,
		"includeMetadata": true,
	}
	if s.namespace != "" {
		body["namespace"] = s.namespace
	}
	if len(filter) > 0 {
		predicates := make(map[string]any, len(filter))
		for k, v := range filter {
			predicates[k] = map[string]any{"$eq": v}
		}
		body["filter"] = predicates
	}

	var resp struct {
		Matches []struct {
			ID       string            `json:"id"`
			Score    float64           `json:"score"`
			Metadata map[string]string `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.doRequest(ctx, http.MethodPost, "/query", body, &resp); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}

	matches := make([]QueryMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		content, md := splitContent(m.Metadata)
		matches = append(matches, QueryMatch{ID: m.ID, Score: m.Score, Content: content, Metadata: md})
	}
	return matches, nil
}

// Delete implements Store.
func (s *PineconeStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids}
	if s.namespace != "" {
		body["namespace"] = s.namespace
	}
	if err := s.doRequest(ctx, http.MethodPost, "/vectors/delete", body, nil); err != nil {
		return fmt.Errorf("pinecone delete: %w", err)
	}
	return nil
}

// ListIDs implements Store using the vectors/list pagination endpoint.
func (s *PineconeStore) ListIDs(ctx context.Context, limit int, pageToken, namespace string) (ListPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	if pageToken != "" {
		q.Set("paginationToken", pageToken)
	}
	if ns := s.resolveNamespace(namespace); ns != "" {
		q.Set("namespace", ns)
	}

	var resp struct {
		Vectors []struct {
			ID string `json:"id"`
		} `json:"vectors"`
		Pagination *struct {
			Next string `json:"next"`
		} `json:"pagination"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/vectors/list?"+q.Encode(), nil, &resp); err != nil {
		return ListPage{}, fmt.Errorf("pinecone list: %w", err)
	}

	page := ListPage{IDs: make([]string, 0, len(resp.Vectors))}
	for _, v := range resp.Vectors {
		page.IDs = append(page.IDs, v.ID)
	}
	if resp.Pagination != nil {
		page.NextToken = resp.Pagination.Next
	}
	return page, nil
}

// FetchByIDs implements Store.
func (s *PineconeStore) FetchByIDs(ctx context.Context, ids []string, namespace string) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}

	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	if ns := s.resolveNamespace(namespace); ns != "" {
		q.Set("namespace", ns)
	}

	var resp struct {
		Vectors map[string]struct {
			ID       string            `json:"id"`
			Values   []float32         `json:"values"`
			Metadata map[string]string `json:"metadata"`
		} `json:"vectors"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/vectors/fetch?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("pinecone fetch: %w", err)
	}

	// Preserve request order; unknown IDs are omitted.
	docs := make([]Document, 0, len(resp.Vectors))
	for _, id := range ids {
		v, ok := resp.Vectors[id]
		if !ok {
			continue
		}
		content, md := splitContent(v.Metadata)
		docs = append(docs, Document{ID: v.ID, Content: content, Embedding: v.Values, Metadata: md})
	}
	return docs, nil
}

// Stats implements Store.
func (s *PineconeStore) Stats(ctx context.Context) (Stats, error) {
	var resp struct {
		Dimension        int `json:"dimension"`
		TotalVectorCount int `json:"totalVectorCount"`
	}
	if err := s.doRequest(ctx, http.MethodPost, "/describe_index_stats", map[string]any{}, &resp); err != nil {
		return Stats{}, fmt.Errorf("pinecone stats: %w", err)
	}
	return Stats{TotalDocuments: resp.TotalVectorCount, Dimensions: resp.Dimension}, nil
}

// HealthCheck implements Store. A reachable index answers describe_index_stats.
func (s *PineconeStore) HealthCheck(ctx context.Context) bool {
	_, err := s.Stats(ctx)
	return err == nil
}

// resolveNamespace prefers the per-call namespace over the configured one.
func (s *PineconeStore) resolveNamespace(namespace string) string {
	if namespace != "" {
		return namespace
	}
	return s.namespace
}

// doRequest executes one HTTP call against the index host, encoding body
// as JSON when non-nil and decoding the response into out when non-nil.
func (s *PineconeStore) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.host+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Api-Key", s.apiKey)
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

// splitContent separates the reserved content field from the remaining
// metadata.
func splitContent(metadata map[string]string) (string, map[string]string) {
	content := metadata[contentKey]
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if k == contentKey {
			continue
		}
		md[k] = v
	}
	return content, md
}
