package embeddings_test

import (
	"testing"

	"github.com/fabfab/doc-analyzer/config"
	"github.com/fabfab/doc-analyzer/embeddings"
)

func TestNewEmbedderOllama(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingsConfig{
			Provider:  config.ProviderOllama,
			Model:     "nomic-embed-text",
			Dimension: 3,
		},
		OllamaHost: "http://localhost:11434",
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("expected embedder, got error: %v", err)
	}
	if embedder == nil {
		t.Fatal("expected non-nil embedder")
	}
}

func TestNewEmbedderOpenAIRequiresKey(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingsConfig{
			Provider:  config.ProviderOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
	}

	if _, err := embeddings.NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingsConfig{Provider: "quantum"},
	}

	if _, err := embeddings.NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
