package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/kubesage/kubesage/internal/log"
)

// OpenAIProvider generates embeddings through the OpenAI embeddings API.
// The whole batch is sent in a single request; the API accepts up to 2048
// inputs per call, far above any ingestion batch this system produces.
type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
	logger     log.Logger
}

// NewOpenAI creates an OpenAI embedding provider.
func NewOpenAI(apiKey, model string, dimensions int, logger log.Logger, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIProvider{
		client:     openai.NewClient(clientOpts...),
		model:      model,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// Embed implements Provider.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements Provider.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(p.model),
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions: openai.Int(int64(p.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmptyResponse, len(resp.Data), len(texts))
	}

	// The API reports each embedding's input index; order defensively.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[d.Index] = vec
	}

	p.logger.Debug("openai embeddings generated", "count", len(texts), "model", p.model)
	return vectors, nil
}

// TestConnection implements Provider.
func (p *OpenAIProvider) TestConnection(ctx context.Context) error {
	if _, err := p.Embed(ctx, "connection test"); err != nil {
		return fmt.Errorf("openai connection test: %w", err)
	}
	return nil
}

// Dimensions implements Provider.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Model implements Provider.
func (p *OpenAIProvider) Model() string { return p.model }
