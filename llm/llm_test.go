package llm_test

import (
	"testing"

	"github.com/fabfab/doc-analyzer/config"
	"github.com/fabfab/doc-analyzer/llm"
)

func TestNewClientOllama(t *testing.T) {
	cfg := config.Config{
		LLM:        config.LLMConfig{Provider: config.ProviderOllama, DefaultModel: "deepseek-r1:14b"},
		OllamaHost: "http://localhost:11434",
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		t.Fatalf("expected client, got error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestNewClientOpenAIRequiresKey(t *testing.T) {
	cfg := config.Config{
		LLM: config.LLMConfig{Provider: config.ProviderOpenAI, DefaultModel: "gpt-4o-mini"},
	}

	if _, err := llm.NewClient(cfg); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	cfg := config.Config{LLM: config.LLMConfig{Provider: "quantum"}}

	if _, err := llm.NewClient(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
