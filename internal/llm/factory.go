package llm

import (
	"context"
	"fmt"

	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/log"
)

// New creates the chat provider selected by cfg.Provider.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (Provider, error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.ModelName, cfg.Temperature, cfg.MaxTokens,
			logger.With("component", "llm-openai"))
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.ModelName, cfg.Temperature, cfg.MaxTokens,
			logger.With("component", "llm-gemini"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
