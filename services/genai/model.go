package genaisvc

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/trezcool/smartbackpack/core"
)

// Providers
const (
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// NewModel returns the model of the configured provider.
func NewModel(ctx context.Context, conf core.AIConfig) (llms.Model, error) {
	switch conf.Provider {
	case ProviderOllama, "":
		opts := []ollama.Option{ollama.WithModel(conf.Model)}
		if conf.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(conf.BaseURL))
		}
		return ollama.New(opts...)

	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(conf.Model), openai.WithToken(conf.APIKey)}
		if conf.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(conf.BaseURL))
		}
		return openai.New(opts...)

	case ProviderGoogleAI:
		return googleai.New(ctx,
			googleai.WithAPIKey(conf.APIKey),
			googleai.WithDefaultModel(conf.Model),
		)
	}
	return nil, fmt.Errorf("unknown AI provider %q", conf.Provider)
}
