package embeddings

import (
	"context"
	"fmt"

	"github.com/finrag/filings-qa/config"
)

// Embedder turns text into fixed-length vectors. The model behind it is
// opaque to the rest of the system; ingestion and retrieval must use the same
// embedder or scores are meaningless.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder selects the configured provider. Ollama is the local default;
// OpenAI requires an API key.
func NewEmbedder(cfg config.Config) (Embedder, error) {
	switch cfg.Embeddings.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(cfg.OllamaHost, cfg.Embeddings.Model, cfg.Embeddings.Dimension), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Embeddings.Model, cfg.Embeddings.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embeddings.Provider)
	}
}

func checkDimension(want, got int, provider string) error {
	if want > 0 && got != want {
		return fmt.Errorf("%s returned %d-dimensional embedding, expected %d", provider, got, want)
	}
	return nil
}
