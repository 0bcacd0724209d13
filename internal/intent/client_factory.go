package intent

import (
	"context"
	"fmt"
	"time"
)

// ProviderConfig selects and configures the LLM provider.
type ProviderConfig struct {
	Provider string // "anthropic" or "gemini"
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// NewClient builds the configured provider client.
func NewClient(ctx context.Context, cfg ProviderConfig) (LLMClient, error) {
	switch cfg.Provider {
	case "anthropic", "":
		ac := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			ac.Timeout = cfg.Timeout
		}
		return NewAnthropicClientWithConfig(ac), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
