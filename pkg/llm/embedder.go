package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/complyra/ragsafe/internal/types"
)

// EmbedderConfig configures the Ollama-backed embedding provider.
type EmbedderConfig struct {
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Embedder converts text into fixed-length vectors via an Ollama embedding
// model. It implements types.Embedder.
type Embedder struct {
	config EmbedderConfig
	llm    *ollama.LLM
}

func NewEmbedder(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{config: config, llm: emb}, nil
}

// Embed returns the embedding vector for text. Failures surface as
// ProviderError so callers can degrade instead of hard-failing.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	embeddings, err := e.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, &types.ProviderError{Provider: "embedding", Err: err}
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, &types.ProviderError{
			Provider: "embedding",
			Err:      fmt.Errorf("empty embedding returned"),
		}
	}
	return embeddings[0], nil
}
