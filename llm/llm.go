// Package llm provides the generation capability: chat completion against
// a caller-selected model, plus discovery of the models the backend
// currently serves.
package llm

import (
	"context"
	"fmt"

	"github.com/fabfab/doc-analyzer/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	// Generate runs a single chat completion against the given model.
	Generate(ctx context.Context, model string, messages []Message) (string, error)
	// ListModels returns the model identifiers the backend reports as
	// currently available.
	ListModels(ctx context.Context) ([]string, error)
}

type Options struct {
	Provider string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
