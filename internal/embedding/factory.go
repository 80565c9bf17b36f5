package embedding

import (
	"context"
	"fmt"

	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/log"
)

// New creates the embedding provider selected by cfg.EmbeddingProvider.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (Provider, error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions,
			logger.With("component", "embedding-openai"))
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions,
			logger.With("component", "embedding-gemini"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.EmbeddingProvider)
	}
}
