package embedding

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/kubesage/kubesage/internal/log"
)

// geminiBatchSize is the number of texts embedded per EmbedContent call.
const geminiBatchSize = 10

// geminiBatchInterval paces successive batch calls to stay under the
// provider's request rate limits. This is the only backpressure mechanism
// in the ingestion path.
const geminiBatchInterval = 100 * time.Millisecond

// GeminiProvider generates embeddings through the Gemini API. Large
// batches are split into sub-batches of geminiBatchSize and paced with a
// rate limiter.
type GeminiProvider struct {
	client     *genai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
	logger     log.Logger
}

// NewGemini creates a Gemini embedding provider.
func NewGemini(ctx context.Context, apiKey, model string, dimensions int, logger log.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiProvider{
		client:     client,
		model:      model,
		dimensions: dimensions,
		limiter:    rate.NewLimiter(rate.Every(geminiBatchInterval), 1),
		logger:     logger,
	}, nil
}

// Embed implements Provider.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements Provider. Sub-batches are sent strictly in order;
// a failing sub-batch aborts the whole call.
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	dim := int32(p.dimensions)
	vectors := make([][]float32, 0, len(texts))

	for _, batch := range splitBatches(texts, geminiBatchSize) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		contents := make([]*genai.Content, len(batch))
		for i, text := range batch {
			contents[i] = genai.NewContentFromText(text, genai.RoleUser)
		}

		resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &dim,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedding request: %w", err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmptyResponse, len(resp.Embeddings), len(batch))
		}
		for _, e := range resp.Embeddings {
			if len(e.Values) == 0 {
				return nil, ErrEmptyResponse
			}
			vectors = append(vectors, e.Values)
		}
	}

	p.logger.Debug("gemini embeddings generated", "count", len(texts), "model", p.model)
	return vectors, nil
}

// TestConnection implements Provider.
func (p *GeminiProvider) TestConnection(ctx context.Context) error {
	if _, err := p.Embed(ctx, "connection test"); err != nil {
		return fmt.Errorf("gemini connection test: %w", err)
	}
	return nil
}

// Dimensions implements Provider.
func (p *GeminiProvider) Dimensions() int { return p.dimensions }

// Model implements Provider.
func (p *GeminiProvider) Model() string { return p.model }
