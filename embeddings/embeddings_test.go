package embeddings_test

import (
	"testing"

	"github.com/finrag/filings-qa/config"
	"github.com/finrag/filings-qa/embeddings"
)

func baseConfig() config.Config {
	return config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOllama,
			Model:     "nomic-embed-text",
			Dimension: 768,
		},
		OllamaHost: "http://localhost:11434",
	}
}

func TestNewEmbedderOllama(t *testing.T) {
	embedder, err := embeddings.NewEmbedder(baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder == nil {
		t.Fatal("expected an embedder")
	}
}

func TestNewEmbedderOpenAIRequiresKey(t *testing.T) {
	cfg := baseConfig()
	cfg.Embeddings.Provider = config.ProviderOpenAI

	if _, err := embeddings.NewEmbedder(cfg); err == nil {
		t.Fatal("expected error when no API key is configured")
	}

	cfg.OpenAIAPIKey = "sk-test"
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder == nil {
		t.Fatal("expected an embedder")
	}
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.Embeddings.Provider = "cohere"

	if _, err := embeddings.NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
