package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/complyra/ragsafe/internal/types"
)

// GeneratorConfig configures the answer-generating chat model.
type GeneratorConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	BaseURL        string
	Timeout        time.Duration
}

// Generator produces answers grounded in an assembled context block. It is
// treated as an opaque black box; everything it returns goes through the
// verifier before reaching a user. Implements types.Generator.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
}

func NewGenerator(config GeneratorConfig) (*Generator, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a compliance assistant. Answer using only the " +
			"provided control excerpts. Cite sources by their [n] markers. If the " +
			"excerpts do not cover the question, say so."
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	return &Generator{config: config, llm: llm}, nil
}

// Generate produces an answer for query using contextText as grounding.
func (g *Generator) Generate(ctx context.Context, contextText, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, g.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, contextText),
		llms.TextParts(llms.ChatMessageTypeHuman, query),
	}

	response, err := g.llm.GenerateContent(ctx, content,
		llms.WithTemperature(g.config.Temperature),
		llms.WithMaxTokens(g.config.MaxTokens),
	)
	if err != nil {
		return "", &types.ProviderError{Provider: "generator", Err: err}
	}
	if len(response.Choices) == 0 || response.Choices[0].Content == "" {
		return "", &types.ProviderError{
			Provider: "generator",
			Err:      fmt.Errorf("empty response from model"),
		}
	}

	return response.Choices[0].Content, nil
}
