// Package embedding provides text embedding providers behind a single
// Provider interface.
//
// Two backends are supported: OpenAI (openai-go) and Gemini (genai).
// Providers are selected by a config-supplied identifier via New.
//
// EmbedBatch is the bulk entry point used by document ingestion; each
// provider is responsible for its own sub-batching and pacing, so callers
// hand over the full text list in one call.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedProvider indicates an unknown provider identifier.
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")

	// ErrEmptyResponse indicates the provider returned no embeddings.
	ErrEmptyResponse = errors.New("empty embedding response")
)

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for texts in stable input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// TestConnection verifies the provider is reachable and the
	// credentials are valid by embedding a probe text.
	TestConnection(ctx context.Context) error

	// Dimensions returns the configured output vector width.
	Dimensions() int

	// Model returns the embedding model identifier.
	Model() string
}

// splitBatches partitions texts into consecutive slices of at most size
// elements, preserving order. A size below 1 yields a single batch.
func splitBatches(texts []string, size int) [][]string {
	if size < 1 || len(texts) <= size {
		if len(texts) == 0 {
			return nil
		}
		return [][]string{texts}
	}
	batches := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[start:end])
	}
	return batches
}
