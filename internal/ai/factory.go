package ai

import (
	"fmt"

	"github.com/tenderlens/tenderlens/internal/ai/anthropic"
	"github.com/tenderlens/tenderlens/internal/ai/mock"
	"github.com/tenderlens/tenderlens/internal/ai/ollama"
	"github.com/tenderlens/tenderlens/internal/ai/openai"
	"github.com/tenderlens/tenderlens/internal/config"
	"github.com/tenderlens/tenderlens/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup. Offline mode is resolved to "mock" by
// config.Load before this runs.
func NewProvider(cfg config.AIConfig) (models.Provider, error) {
	switch cfg.Provider {
	case "mock":
		return mock.NewProvider(), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, cfg.PromptMaxChars), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.PromptMaxChars), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.PromptMaxChars), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of mock, ollama, openai, anthropic", cfg.Provider)
	}
}
